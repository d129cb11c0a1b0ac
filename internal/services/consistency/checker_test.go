package consistency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

func newTestChecker(t *testing.T, mutate func(*common.Config)) *Checker {
	t.Helper()
	cfg := common.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewChecker(cfg, arbor.NewLogger())
}

func checkerDoc(id, filename string, uploadedAt time.Time) *models.ProcessedDocument {
	return &models.ProcessedDocument{
		ID: id,
		Metadata: models.DocumentMetadata{
			Filename:   filename,
			UploadedAt: uploadedAt,
		},
	}
}

func metricEntity(name, source string, value interface{}, confidence float64) models.ExtractedEntity {
	return models.ExtractedEntity{
		Name:             name,
		Value:            value,
		Confidence:       confidence,
		SourceDocumentID: source,
		ExtractionMethod: models.EntityMethodMerged,
	}
}

func resultWith(entities ...models.ExtractedEntity) *models.AnalysisResult {
	return &models.AnalysisResult{Entities: entities}
}

func TestCheckConsistentDocuments(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_deck", "deck.pdf", uploaded),
		checkerDoc("doc_fin", "financials.pdf", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(
			metricEntity("arr", "doc_deck", float64(2_000_000), 0.8),
			metricEntity("customers", "doc_deck", float64(150), 0.8),
		),
		resultWith(
			metricEntity("arr", "doc_fin", float64(2_050_000), 0.9),
			metricEntity("customers", "doc_fin", float64(160), 0.9),
		),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)

	assert.Empty(t, report.Issues)
	assert.Equal(t, 1.0, report.OverallScore)
	assert.Equal(t, 2, report.CheckedCount)
	assert.Equal(t, 2, report.DocumentCount)
	assert.False(t, report.GeneratedAt.IsZero())

	require.Len(t, report.Similarity, 1)
	assert.Equal(t, "doc_deck", report.Similarity[0].DocumentA)
	assert.Equal(t, "doc_fin", report.Similarity[0].DocumentB)
	assert.Equal(t, 2, report.Similarity[0].Aligned)
	assert.Equal(t, 0, report.Similarity[0].Conflicting)
	assert.Equal(t, 1.0, report.Similarity[0].Similarity)
}

func TestCheckConflictingARR(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_deck", "deck.pdf", uploaded),
		checkerDoc("doc_fin", "financials.pdf", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(metricEntity("arr", "doc_deck", float64(2_000_000), 0.8)),
		resultWith(metricEntity("arr", "doc_fin", float64(3_000_000), 0.9)),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	assert.Equal(t, models.IssueValueConflict, issue.Type)
	assert.Equal(t, "arr", issue.Metric)
	assert.Equal(t, models.SeverityHigh, issue.Severity)
	require.Len(t, issue.Groups, 2)
	assert.Contains(t, issue.SuggestedResolution, "3000000")
	assert.Contains(t, issue.SuggestedResolution, "financials.pdf")
	assert.Equal(t, []string{"deck.pdf", "financials.pdf"}, issue.AffectedDocuments)

	assert.InDelta(t, 1.0-3.0/18.0, report.OverallScore, 1e-9)

	require.Len(t, report.Similarity, 1)
	assert.Equal(t, 0.0, report.Similarity[0].Similarity)
	assert.Equal(t, 1, report.Similarity[0].Conflicting)
}

func TestCheckTieBreaksOnRecency(t *testing.T) {
	older := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_old", "q1_update.pdf", older),
		checkerDoc("doc_new", "q2_update.pdf", newer),
	}
	results := []*models.AnalysisResult{
		resultWith(metricEntity("arr", "doc_old", float64(2_000_000), 0.8)),
		resultWith(metricEntity("arr", "doc_new", float64(3_000_000), 0.8)),
	}

	recent := newTestChecker(t, nil)
	report, err := recent.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].SuggestedResolution, "3000000")

	stale := newTestChecker(t, func(cfg *common.Config) {
		cfg.Consistency.PrioritizeRecent = false
	})
	report, err = stale.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].SuggestedResolution, "2000000")
}

func TestCheckMissingData(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_a", "deck.pdf", uploaded),
		checkerDoc("doc_b", "notes.md", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(
			metricEntity("arr", "doc_a", float64(2_000_000), 0.8),
			metricEntity("customers", "doc_a", float64(150), 0.8),
		),
		resultWith(metricEntity("customers", "doc_b", float64(152), 0.8)),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Issues, "coverage gaps are not findings unless required")

	report, err = checker.Check(results, docs, &models.AnalysisContext{RequireAllDocuments: true})
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	assert.Equal(t, models.IssueMissingData, issue.Type)
	assert.Equal(t, "arr", issue.Metric)
	assert.Equal(t, models.SeverityMedium, issue.Severity)
	assert.Contains(t, issue.Description, "1 of 2")
	assert.Equal(t, []string{"notes.md"}, issue.AffectedDocuments)
	assert.InDelta(t, 1.0-2.0/18.0, report.OverallScore, 1e-9)
}

func TestCheckTimelineViolation(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	roundDate := time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_deck", "deck.pdf", uploaded),
		checkerDoc("doc_fin", "financials.pdf", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(metricEntity("founded_year", "doc_deck", float64(2021), 0.9)),
		resultWith(metricEntity("last_round_date", "doc_fin", roundDate, 0.9)),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	assert.Equal(t, models.IssueTimeline, issue.Type)
	assert.Equal(t, models.SeverityHigh, issue.Severity)
	assert.Contains(t, issue.Description, "2020-06-15")
	assert.Contains(t, issue.Description, "2021")
	assert.Contains(t, issue.AffectedDocuments, "financials.pdf")
	assert.Contains(t, issue.AffectedDocuments, "deck.pdf")
	assert.InDelta(t, 1.0-3.0/18.0, report.OverallScore, 1e-9)
}

func TestCheckTimelineFromTypedRecords(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	roundDate := time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{checkerDoc("doc_memo", "memo.docx", uploaded)}
	results := []*models.AnalysisResult{{
		CompanyProfile: models.CompanyProfile{FoundedYear: 2021},
		Metrics: models.InvestmentMetrics{
			Funding: models.FundingMetrics{LastRoundDate: &roundDate},
		},
	}}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)

	assert.Equal(t, models.IssueTimeline, report.Issues[0].Type)
	assert.Equal(t, []string{"memo.docx"}, report.Issues[0].AffectedDocuments)
}

func TestCheckRoundAfterFoundingIsClean(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	roundDate := time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{checkerDoc("doc_deck", "deck.pdf", uploaded)}
	results := []*models.AnalysisResult{
		resultWith(
			metricEntity("founded_year", "doc_deck", float64(2021), 0.9),
			metricEntity("last_round_date", "doc_deck", roundDate, 0.9),
		),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 1.0, report.OverallScore)
}

func TestCheckSimilarityMatrixPairs(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_a", "a.pdf", uploaded),
		checkerDoc("doc_b", "b.pdf", uploaded),
		checkerDoc("doc_c", "c.pdf", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(
			metricEntity("arr", "doc_a", float64(2_000_000), 0.8),
			metricEntity("customers", "doc_a", float64(150), 0.8),
		),
		resultWith(
			metricEntity("arr", "doc_b", float64(2_050_000), 0.8),
			metricEntity("customers", "doc_b", float64(300), 0.8),
		),
		resultWith(metricEntity("churn_rate", "doc_c", float64(5), 0.8)),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Similarity, 3)

	bySides := make(map[string]models.DocumentSimilarity, 3)
	for _, pair := range report.Similarity {
		bySides[pair.DocumentA+"|"+pair.DocumentB] = pair
	}

	ab := bySides["doc_a|doc_b"]
	assert.Equal(t, 1, ab.Aligned)
	assert.Equal(t, 1, ab.Conflicting)
	assert.Equal(t, 0.5, ab.Similarity)

	ac := bySides["doc_a|doc_c"]
	assert.Equal(t, 0, ac.Aligned)
	assert.Equal(t, 0, ac.Conflicting)
	assert.Equal(t, 1.0, ac.Similarity)
}

func TestCheckSortsIssuesByMetric(t *testing.T) {
	checker := newTestChecker(t, nil)
	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.ProcessedDocument{
		checkerDoc("doc_a", "a.pdf", uploaded),
		checkerDoc("doc_b", "b.pdf", uploaded),
	}
	results := []*models.AnalysisResult{
		resultWith(
			metricEntity("zone_score", "doc_a", float64(100), 0.8),
			metricEntity("arr", "doc_a", float64(2_000_000), 0.8),
		),
		resultWith(
			metricEntity("zone_score", "doc_b", float64(200), 0.8),
			metricEntity("arr", "doc_b", float64(3_000_000), 0.8),
		),
	}

	report, err := checker.Check(results, docs, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 2)

	assert.Equal(t, "arr", report.Issues[0].Metric)
	assert.Equal(t, models.SeverityHigh, report.Issues[0].Severity)
	assert.Equal(t, "zone_score", report.Issues[1].Metric)
	assert.Equal(t, models.SeverityMedium, report.Issues[1].Severity)
}

func TestCheckValidatesInput(t *testing.T) {
	checker := newTestChecker(t, nil)

	_, err := checker.Check(nil, nil, nil)
	require.Error(t, err)
	terr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CategoryValidation, terr.Category)
	assert.Equal(t, "no_results", terr.Code)

	uploaded := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	docs := []*models.ProcessedDocument{
		checkerDoc("doc_a", "a.pdf", uploaded),
		checkerDoc("doc_b", "b.pdf", uploaded),
	}
	_, err = checker.Check([]*models.AnalysisResult{resultWith()}, docs, nil)
	require.Error(t, err)
	terr, ok = resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "result_document_mismatch", terr.Code)
}
