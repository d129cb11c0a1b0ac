package memo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

func testEngine(t *testing.T, mutate func(*common.Config)) *Engine {
	t.Helper()
	cfg := common.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewEngine(cfg, nil, arbor.NewLogger())
}

func amount(v float64) *float64 {
	return &v
}

func highRisk(n int) []models.RiskFlag {
	risks := make([]models.RiskFlag, 0, n)
	for i := 0; i < n; i++ {
		risks = append(risks, models.RiskFlag{
			ID:          fmt.Sprintf("risk_%03d", i+1),
			Type:        models.RiskFinancialInconsistency,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("conflict %d", i+1),
		})
	}
	return risks
}

func baseInput() *interfaces.MemoInput {
	return &interfaces.MemoInput{
		Result: &models.AnalysisResult{
			CompanyProfile: models.CompanyProfile{
				Name:     "Acme Analytics",
				OneLiner: "Usage analytics for B2B SaaS",
				Sector:   "saas",
				Stage:    models.StageSeed,
			},
			Metrics: models.InvestmentMetrics{
				Revenue: models.RevenueMetrics{ARR: amount(2_000_000), GrowthRate: amount(100)},
				Funding: models.FundingMetrics{CurrentAsk: amount(5_000_000), Stage: models.StageSeed},
			},
			Confidence:        0.9,
			ProcessingTime:    250 * time.Millisecond,
			SourceDocumentIDs: []string{"doc_a", "doc_b"},
		},
		Breakdown: &models.ScoreBreakdown{
			RawComponents:      models.ComponentScores{MarketOpportunity: 80, Team: 75, Traction: 70, Product: 65, CompetitivePosition: 60},
			WeightedComponents: models.ComponentScores{MarketOpportunity: 20, Team: 18.75, Traction: 14, Product: 9.75, CompetitivePosition: 9},
			TotalScore:         71.5,
			Weightings:         models.DefaultWeightings(),
			Confidence:         0.85,
			Methodology:        "five-component weighted composite against sector percentile benchmarks",
		},
		Benchmarks: []models.BenchmarkComparison{
			{Metric: "arr", CompanyValue: 2_000_000, SectorP25: 500_000, SectorP50: 1_200_000, SectorP75: 3_000_000, SectorP90: 8_000_000, PercentileRank: 61, Standing: "within"},
			{Metric: "growth_rate", CompanyValue: 100, SectorP25: 40, SectorP50: 80, SectorP75: 150, SectorP90: 250, PercentileRank: 57, Standing: "within"},
		},
	}
}

func TestDecisionMapping(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		highRisks int
		allowHold bool
		want      models.Recommendation
	}{
		{"strong buy at threshold", 80, 0, true, models.RecommendStrongBuy},
		{"high score clean", 92, 0, true, models.RecommendStrongBuy},
		{"high score one risk drops to buy", 92, 1, true, models.RecommendBuy},
		{"high score two risks drops to hold", 92, 2, true, models.RecommendHold},
		{"three high risks always pass", 92, 3, true, models.RecommendPass},
		{"buy at threshold", 60, 1, true, models.RecommendBuy},
		{"mid score two risks holds", 65, 2, true, models.RecommendHold},
		{"hold at threshold", 40, 0, true, models.RecommendHold},
		{"hold collapses to pass when disabled", 45, 0, false, models.RecommendPass},
		{"below hold threshold passes", 39.9, 0, true, models.RecommendPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := testEngine(t, func(cfg *common.Config) {
				cfg.Scoring.AllowHold = tt.allowHold
			})

			input := baseInput()
			input.Breakdown.TotalScore = tt.score
			input.Risks = highRisk(tt.highRisks)

			memo, err := engine.Generate(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, memo.Summary.Recommendation)
			assert.Equal(t, tt.want, memo.InvestmentRecommendation.Decision)
		})
	}
}

func TestGenerateHappyPath(t *testing.T) {
	engine := testEngine(t, nil)

	memo, err := engine.Generate(context.Background(), baseInput())
	require.NoError(t, err)

	assert.NotEmpty(t, memo.ID)
	assert.Equal(t, "Acme Analytics", memo.Summary.CompanyName)
	assert.Equal(t, "saas", memo.Summary.Sector)
	assert.Equal(t, models.StageSeed, memo.Summary.Stage)
	assert.InDelta(t, 71.5, memo.Summary.SignalScore, 0.001)
	assert.Equal(t, models.RecommendBuy, memo.Summary.Recommendation)
	assert.InDelta(t, 0.85, memo.Summary.Confidence, 0.001)

	assert.Len(t, memo.KeyBenchmarks, 2)
	assert.Equal(t, timelineStandard, memo.InvestmentRecommendation.Timeline)
	assert.InDelta(t, 1_000_000, memo.InvestmentRecommendation.SuggestedCheckSize, 0.001)

	// Seed stage bounds the valuation at 10x-18x ARR.
	assert.InDelta(t, 20_000_000, memo.InvestmentRecommendation.ValuationCap.Low, 0.001)
	assert.InDelta(t, 36_000_000, memo.InvestmentRecommendation.ValuationCap.High, 0.001)

	assert.Equal(t, "aestimo", memo.Metadata.GeneratedBy)
	assert.Equal(t, []string{"doc_a", "doc_b"}, memo.Metadata.SourceDocuments)
	assert.Equal(t, models.DefaultWeightings(), memo.AnalysisWeightings)
	assert.NotEmpty(t, memo.InvestmentRecommendation.Rationale)
}

func TestGenerateRejectsIncompleteInput(t *testing.T) {
	engine := testEngine(t, nil)

	for name, input := range map[string]*interfaces.MemoInput{
		"nil input":     nil,
		"nil result":    {Breakdown: &models.ScoreBreakdown{}},
		"nil breakdown": {Result: &models.AnalysisResult{}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Generate(context.Background(), input)
			require.Error(t, err)
			memoErr, ok := resilience.AsError(err)
			require.True(t, ok)
			assert.Equal(t, "memo_input_incomplete", memoErr.Code)
		})
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	engine := testEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Generate(ctx, baseInput())
	require.Error(t, err)
	cancelErr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CodeCancelled, cancelErr.Code)
}

func TestRevenueProjectionWithSectorFloor(t *testing.T) {
	engine := testEngine(t, nil)

	memo, err := engine.Generate(context.Background(), baseInput())
	require.NoError(t, err)

	projected := memo.GrowthPotential.ProjectedRevenue

	// year1: 2M x 2.0. Growth then decays 100 -> 80 -> 80, floored at the
	// sector median of 80, so year3 = 4M x 1.8 x 1.8 and year5 repeats it.
	assert.InDelta(t, 4_000_000, projected.Year1, 1)
	assert.InDelta(t, 12_960_000, projected.Year3, 1)
	assert.InDelta(t, 41_990_400, projected.Year5, 1)
	assert.InDelta(t, 100, memo.GrowthPotential.GrowthRate, 0.001)
	assert.Contains(t, memo.GrowthPotential.Assumptions[1], "sector median")
}

func TestRevenueProjectionWithoutBenchmarks(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Benchmarks = nil

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	projected := memo.GrowthPotential.ProjectedRevenue

	// Unfloored decay: 100 -> 80 -> 64 -> 51.2 -> 40.96.
	assert.InDelta(t, 4_000_000, projected.Year1, 1)
	assert.InDelta(t, 11_808_000, projected.Year3, 1)
	assert.InDelta(t, 25_166_570, projected.Year5, 10)
	assert.Contains(t, memo.GrowthPotential.Assumptions[1], "no sector growth floor")
}

func TestRevenueProjectionZeroARR(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Result.Metrics.Revenue = models.RevenueMetrics{ARR: amount(0), GrowthRate: amount(0)}
	input.Breakdown.TotalScore = 12
	input.Risks = nil

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Zero(t, memo.GrowthPotential.ProjectedRevenue.Year1)
	assert.Zero(t, memo.GrowthPotential.ProjectedRevenue.Year3)
	assert.Zero(t, memo.GrowthPotential.ProjectedRevenue.Year5)
	assert.InDelta(t, 250_000, memo.InvestmentRecommendation.SuggestedCheckSize, 0.001)
}

func TestRevenueProjectionAnnualizesMRR(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Result.Metrics.Revenue = models.RevenueMetrics{MRR: amount(100_000)}
	input.Benchmarks = nil

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	// 1.2M annualized, zero reported growth.
	assert.InDelta(t, 1_200_000, memo.GrowthPotential.ProjectedRevenue.Year1, 1)
	assert.InDelta(t, 1_200_000, memo.GrowthPotential.ProjectedRevenue.Year5, 1)
}

func TestCheckSizeMonotonicAndCapped(t *testing.T) {
	prev := 0.0
	for _, score := range []float64{0, 20, 40, 55, 60, 75, 80, 95} {
		got := suggestCheckSize(score, nil)
		assert.GreaterOrEqual(t, got, prev, "check size must not decrease with score %v", score)
		prev = got
	}

	assert.InDelta(t, 2_000_000, suggestCheckSize(85, nil), 0.001)
	assert.InDelta(t, 750_000, suggestCheckSize(85, amount(750_000)), 0.001, "current ask caps the check")
	assert.InDelta(t, 2_000_000, suggestCheckSize(85, amount(0)), 0.001, "zero ask leaves the check uncapped")
	assert.InDelta(t, 250_000, suggestCheckSize(10, nil), 0.001)
}

func TestValuationCapByStage(t *testing.T) {
	build := func(arr float64, stage models.FundingStage) *models.AnalysisResult {
		return &models.AnalysisResult{
			Metrics: models.InvestmentMetrics{
				Revenue: models.RevenueMetrics{ARR: amount(arr)},
				Funding: models.FundingMetrics{Stage: stage},
			},
		}
	}

	seed := valuationCap(build(2_000_000, models.StageSeed))
	assert.InDelta(t, 20_000_000, seed.Low, 0.001)
	assert.InDelta(t, 36_000_000, seed.High, 0.001)

	seriesA := valuationCap(build(2_000_000, models.StageSeriesA))
	assert.InDelta(t, 16_000_000, seriesA.Low, 0.001)
	assert.InDelta(t, 28_000_000, seriesA.High, 0.001)

	unknown := valuationCap(build(2_000_000, ""))
	assert.InDelta(t, 12_000_000, unknown.Low, 0.001)
	assert.InDelta(t, 24_000_000, unknown.High, 0.001)

	preRevenue := valuationCap(&models.AnalysisResult{})
	assert.Zero(t, preRevenue.Low)
	assert.Zero(t, preRevenue.High)
}

func TestValuationCapFallsBackToProfileStage(t *testing.T) {
	result := &models.AnalysisResult{
		CompanyProfile: models.CompanyProfile{Stage: models.StageSeriesB},
		Metrics: models.InvestmentMetrics{
			Revenue: models.RevenueMetrics{ARR: amount(10_000_000)},
		},
	}

	band := valuationCap(result)
	assert.InDelta(t, 60_000_000, band.Low, 0.001)
	assert.InDelta(t, 100_000_000, band.High, 0.001)
}

func TestDiligenceQuestionsDedupAndCap(t *testing.T) {
	risks := []models.RiskFlag{
		{Type: models.RiskFinancialInconsistency, Severity: models.SeverityHigh},
		{Type: models.RiskFinancialInconsistency, Severity: models.SeverityMedium},
		{Type: models.RiskMarketSizeConcern, Severity: models.SeverityMedium},
		{Type: models.RiskCompetitiveThreat, Severity: models.SeverityMedium},
		{Type: models.RiskTeamGap, Severity: models.SeverityLow},
		{Type: models.RiskProduct, Severity: models.SeverityMedium},
		{Type: models.RiskRegulatory, Severity: models.SeverityHigh},
		{Type: models.RiskTimeline, Severity: models.SeverityHigh},
	}
	weak := models.ComponentScores{MarketOpportunity: 10, Team: 10, Traction: 10, Product: 10, CompetitivePosition: 10}

	questions := diligenceQuestions(risks, weak)
	assert.Len(t, questions, maxDiligenceQuestions)

	seen := make(map[string]bool)
	for _, q := range questions {
		assert.False(t, seen[q], "question repeated: %s", q)
		seen[q] = true
	}

	// Risk questions come first; the duplicate financial risk collapses.
	assert.Equal(t, riskQuestions[models.RiskFinancialInconsistency], questions[0])
	assert.Equal(t, riskQuestions[models.RiskMarketSizeConcern], questions[1])
}

func TestDiligenceQuestionsFromWeakComponents(t *testing.T) {
	weak := models.ComponentScores{MarketOpportunity: 35, Team: 80, Traction: 12, Product: 55, CompetitivePosition: 39.9}

	questions := diligenceQuestions(nil, weak)
	require.Len(t, questions, 3)
	assert.Contains(t, questions[0], "market opportunity")
	assert.Contains(t, questions[1], "retention and revenue")
	assert.Contains(t, questions[2], "competitive landscape")
}

func TestTimelineSelection(t *testing.T) {
	tests := []struct {
		score     float64
		highRisks int
		want      string
	}{
		{92, 0, timelineFastTrack},
		{65, 1, timelineExtended},
		{92, 3, timelineExtended},
		{65, 0, timelineStandard},
		{20, 0, timelineStandard},
	}

	engine := testEngine(t, nil)
	for _, tt := range tests {
		input := baseInput()
		input.Breakdown.TotalScore = tt.score
		input.Risks = highRisk(tt.highRisks)

		memo, err := engine.Generate(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, memo.InvestmentRecommendation.Timeline,
			"score %v with %d high risks", tt.score, tt.highRisks)
	}
}

func TestRiskAssessmentGrouping(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Risks = []models.RiskFlag{
		{Type: models.RiskFinancialInconsistency, Severity: models.SeverityHigh, Description: "ARR conflict", SuggestedMitigation: "reconcile statements"},
		{Type: models.RiskMarketSizeConcern, Severity: models.SeverityMedium, Description: "TAM unquantified"},
		{Type: models.RiskTeamGap, Severity: models.SeverityMedium, Description: "no CTO"},
		{Type: models.RiskTeamGap, Severity: models.SeverityLow, Description: "single founder"},
	}
	input.Consistency = &models.ConsistencyReport{OverallScore: 0.62}

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	assessment := memo.RiskAssessment
	require.Len(t, assessment.HighPriorityRisks, 1)
	require.Len(t, assessment.MediumPriorityRisks, 2)
	require.Len(t, assessment.LowPriorityRisks, 1)
	assert.Equal(t, "HIGH", assessment.HighPriorityRisks[0].Severity)
	assert.Equal(t, "MEDIUM", assessment.MediumPriorityRisks[0].Severity)
	assert.Equal(t, "LOW", assessment.LowPriorityRisks[0].Severity)
	assert.Equal(t, "HIGH", assessment.OverallRiskLevel)
	assert.InDelta(t, 0.62, assessment.ConsistencyScore, 0.001)
	assert.Equal(t, "reconcile statements", assessment.HighPriorityRisks[0].Mitigation)
}

func TestRiskAssessmentLevels(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "LOW", memo.RiskAssessment.OverallRiskLevel)
	assert.InDelta(t, 1.0, memo.RiskAssessment.ConsistencyScore, 0.001, "no report means a clean consistency score")

	input.Risks = []models.RiskFlag{{Type: models.RiskProduct, Severity: models.SeverityMedium, Description: "pre-launch"}}
	memo, err = engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", memo.RiskAssessment.OverallRiskLevel)
}

func TestGenerateBenchmarkOutage(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Benchmarks = nil
	input.Warnings = []string{"benchmarking unavailable"}
	input.Breakdown.Confidence = 0.7

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, memo.KeyBenchmarks)
	assert.Contains(t, memo.Metadata.Warnings, "benchmarking unavailable")
	assert.LessOrEqual(t, memo.Summary.Confidence, 0.7)
}

func TestGenerateCollectsMissingDataWarnings(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Consistency = &models.ConsistencyReport{
		OverallScore: 0.85,
		Issues: []models.ConsistencyIssue{
			{Type: models.IssueMissingData, Metric: "churn_rate", Severity: models.SeverityLow, Description: "churn_rate reported in no document"},
			{Type: models.IssueValueConflict, Metric: "arr", Severity: models.SeverityHigh, Description: "arr conflicts across documents"},
		},
	}

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, memo.Metadata.Warnings, "churn_rate reported in no document")
	assert.NotContains(t, memo.Metadata.Warnings, "arr conflicts across documents")
}

func TestSourceDocumentsPreferFilenames(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Documents = []*models.ProcessedDocument{
		{ID: "doc_1", Metadata: models.DocumentMetadata{Filename: "pitch.pdf"}, Quality: models.QualityScores{Completeness: 0.8}},
		{ID: "doc_2", Quality: models.QualityScores{Completeness: 0.6}},
	}

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"pitch.pdf", "doc_2"}, memo.Metadata.SourceDocuments)
	assert.InDelta(t, 0.7, memo.Metadata.DataQuality, 0.001)
}

func TestDataQualityFallsBackToConfidence(t *testing.T) {
	engine := testEngine(t, nil)

	memo, err := engine.Generate(context.Background(), baseInput())
	require.NoError(t, err)
	assert.InDelta(t, 0.9, memo.Metadata.DataQuality, 0.001)
}

func TestSignalScoreRounding(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Breakdown.TotalScore = 64.06

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.InDelta(t, 64.1, memo.Summary.SignalScore, 0.0001)

	input.Breakdown.TotalScore = 100.4
	memo, err = engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.InDelta(t, 100, memo.Summary.SignalScore, 0.0001, "score clamps into [0,100]")
}

func TestRationaleMatchesDecision(t *testing.T) {
	engine := testEngine(t, nil)

	input := baseInput()
	input.Breakdown.TotalScore = 85

	memo, err := engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, memo.InvestmentRecommendation.Rationale, "85.0")
	assert.Contains(t, memo.InvestmentRecommendation.Rationale, "market opportunity")

	input.Breakdown.TotalScore = 47.5
	input.Risks = highRisk(3)
	memo, err = engine.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, memo.InvestmentRecommendation.Rationale, "3 high-severity risks")
}
