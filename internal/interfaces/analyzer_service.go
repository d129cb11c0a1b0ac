package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// AnalyzerService runs the LLM analysis workflow over a parsed document set.
type AnalyzerService interface {
	// AnalyzeContent concatenates the documents, dispatches the workflow
	// prompts concurrently, and maps the JSON responses into a typed
	// AnalysisResult. A failed company_profile or investment_metrics prompt
	// is fatal (ai_service/extraction_failed); other failed prompts degrade
	// to empty records with a warning.
	AnalyzeContent(ctx context.Context, docs []*models.ProcessedDocument, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error)
}

// EntityExtractor produces entities from one parsed document using the
// deterministic pattern catalog.
type EntityExtractor interface {
	Extract(doc *models.ProcessedDocument) []models.ExtractedEntity
}

// EntityReconciler merges pattern and LLM entities into canonical records.
type EntityReconciler interface {
	// Reconcile deduplicates by (name, source document), keeps the higher
	// confidence value on conflict, validates numeric sanity, and drops
	// entities below the confidence threshold.
	Reconcile(patternEntities, aiEntities []models.ExtractedEntity) []models.ExtractedEntity
}

// ConsistencyService cross-checks metric values between documents.
type ConsistencyService interface {
	// Check groups per-metric values by tolerance, emits discrepancy and
	// temporal issues, and computes the document similarity matrix and
	// overall consistency score. Findings are data, not faults; the error
	// return covers only invalid input.
	Check(results []*models.AnalysisResult, docs []*models.ProcessedDocument, analysisCtx *models.AnalysisContext) (*models.ConsistencyReport, error)
}
