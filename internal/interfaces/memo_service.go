package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// MemoInput gathers everything the recommendation engine consumes.
type MemoInput struct {
	Result      *models.AnalysisResult
	Consistency *models.ConsistencyReport
	Breakdown   *models.ScoreBreakdown
	Risks       []models.RiskFlag
	Benchmarks  []models.BenchmarkComparison
	Weightings  *models.Weightings
	Warnings    []string
	Documents   []*models.ProcessedDocument
}

// MemoService synthesizes the terminal deal memo and renders it for export.
type MemoService interface {
	// Generate applies the recommendation mapping, revenue projections,
	// check-size and valuation suggestions, diligence questions, and
	// timeline to produce the memo.
	Generate(ctx context.Context, input *MemoInput) (*models.DealMemo, error)

	// RenderMarkdown produces the memo as a markdown document.
	RenderMarkdown(memo *models.DealMemo) (string, error)

	// RenderPDF produces the memo as PDF bytes via the markdown renderer.
	RenderPDF(memo *models.DealMemo) ([]byte, error)
}
