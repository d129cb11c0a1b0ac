// -----------------------------------------------------------------------
// Recommendation Engine - synthesizes the terminal deal memo from the
// analysis, consistency, scoring, and benchmark outputs
// -----------------------------------------------------------------------

package memo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.MemoService = (*Engine)(nil)

const (
	// growthDecay shrinks the growth rate each projected year.
	growthDecay = 0.8

	// maxDiligenceQuestions caps the rendered question list.
	maxDiligenceQuestions = 8

	timelineFastTrack = "2-3 weeks (fast track)"
	timelineExtended  = "6-8 weeks (extended)"
	timelineStandard  = "4-5 weeks (standard)"
)

// checkSizeBands step the suggested check with the total score; the last
// band is the floor every memo falls back to.
var checkSizeBands = []struct {
	minScore float64
	amount   float64
}{
	{80, 2_000_000},
	{60, 1_000_000},
	{40, 500_000},
	{0, 250_000},
}

// stageMultiples bound the valuation cap as ARR multiples per stage.
var stageMultiples = map[models.FundingStage]models.ValuationBand{
	models.StagePreSeed: {Low: 12, High: 20},
	models.StageSeed:    {Low: 10, High: 18},
	models.StageSeriesA: {Low: 8, High: 14},
	models.StageSeriesB: {Low: 6, High: 10},
	models.StageSeriesC: {Low: 5, High: 8},
	models.StageGrowth:  {Low: 4, High: 7},
	models.StageIPO:     {Low: 3, High: 6},
}

var defaultMultiples = models.ValuationBand{Low: 6, High: 12}

// Engine assembles deal memos and renders them for export.
type Engine struct {
	allowHold bool
	pdf       interfaces.PDFService
	logger    arbor.ILogger
}

// NewEngine builds the recommendation engine. The PDF service may be nil
// when PDF export is not needed.
func NewEngine(cfg *common.Config, pdf interfaces.PDFService, logger arbor.ILogger) *Engine {
	return &Engine{
		allowHold: cfg.Scoring.AllowHold,
		pdf:       pdf,
		logger:    logger,
	}
}

// Generate applies the recommendation mapping and synthesizes the memo.
func (e *Engine) Generate(ctx context.Context, input *interfaces.MemoInput) (*models.DealMemo, error) {
	if ctx.Err() != nil {
		return nil, resilience.NewCancelled("memo generation")
	}
	if input == nil || input.Result == nil || input.Breakdown == nil {
		return nil, resilience.New(resilience.CategoryValidation, "memo_input_incomplete",
			"memo generation requires an analysis result and a score breakdown")
	}

	result := input.Result
	breakdown := input.Breakdown

	weightings := breakdown.Weightings
	if input.Weightings != nil {
		weightings = *input.Weightings
	}

	highRisks := countBySeverity(input.Risks, models.SeverityHigh)
	decision := e.decide(breakdown.TotalScore, highRisks)

	projection, growthRate, assumptions := projectRevenue(result, input.Benchmarks)
	checkSize := suggestCheckSize(breakdown.TotalScore, result.Metrics.Funding.CurrentAsk)
	valuation := valuationCap(result)

	warnings := append([]string(nil), input.Warnings...)
	if input.Consistency != nil {
		for _, issue := range input.Consistency.Issues {
			if issue.Type == models.IssueMissingData {
				warnings = append(warnings, issue.Description)
			}
		}
	}

	memo := &models.DealMemo{
		ID: common.NewMemoID(),
		Summary: models.MemoSummary{
			CompanyName:    result.CompanyProfile.Name,
			OneLiner:       result.CompanyProfile.OneLiner,
			Sector:         result.CompanyProfile.Sector,
			Stage:          summaryStage(result),
			SignalScore:    roundScore(breakdown.TotalScore),
			Recommendation: decision,
			Confidence:     breakdown.Confidence,
		},
		KeyBenchmarks: append([]models.BenchmarkComparison(nil), input.Benchmarks...),
		GrowthPotential: models.GrowthPotential{
			ProjectedRevenue: projection,
			GrowthRate:       growthRate,
			Assumptions:      assumptions,
		},
		RiskAssessment: assembleRisks(input.Risks, input.Consistency),
		InvestmentRecommendation: models.InvestmentRecommendation{
			Decision:           decision,
			Rationale:          rationale(decision, breakdown, highRisks),
			SuggestedCheckSize: checkSize,
			ValuationCap:       valuation,
			DiligenceQuestions: diligenceQuestions(input.Risks, breakdown.RawComponents),
			Timeline:           timeline(decision, highRisks),
		},
		AnalysisWeightings: weightings,
		ScoreBreakdown:     *breakdown,
		Metadata: models.MemoMetadata{
			GeneratedBy:     "aestimo",
			AnalysisVersion: common.GetVersion(),
			SourceDocuments: sourceDocumentNames(input),
			ProcessingTime:  result.ProcessingTime,
			DataQuality:     dataQuality(input),
			GeneratedAt:     time.Now().UTC(),
			Warnings:        warnings,
		},
	}

	e.logger.Info().
		Str("memo_id", memo.ID).
		Str("company", memo.Summary.CompanyName).
		Float64("score", memo.Summary.SignalScore).
		Str("recommendation", string(decision)).
		Int("high_risks", highRisks).
		Msg("Deal memo generated")

	return memo, nil
}

// decide applies the ordered recommendation mapping; the first matching
// rule wins.
func (e *Engine) decide(score float64, highRisks int) models.Recommendation {
	switch {
	case highRisks >= 3:
		return models.RecommendPass
	case score >= 80 && highRisks == 0:
		return models.RecommendStrongBuy
	case score >= 60 && highRisks <= 1:
		return models.RecommendBuy
	case score >= 40:
		if !e.allowHold {
			return models.RecommendPass
		}
		return models.RecommendHold
	default:
		return models.RecommendPass
	}
}

// projectRevenue runs the decayed growth projection. The growth rate
// shrinks 20% per year and, when a sector growth band is known, never
// falls below the sector median.
func projectRevenue(result *models.AnalysisResult, benchmarks []models.BenchmarkComparison) (models.RevenueProjection, float64, []string) {
	arr := 0.0
	if result.Metrics.Revenue.ARR != nil {
		arr = *result.Metrics.Revenue.ARR
	} else if result.Metrics.Revenue.MRR != nil {
		arr = *result.Metrics.Revenue.MRR * 12
	}

	growth := 0.0
	if result.Metrics.Revenue.GrowthRate != nil {
		growth = *result.Metrics.Revenue.GrowthRate
	}

	floor := 0.0
	hasFloor := false
	for _, row := range benchmarks {
		if row.Metric == "growth_rate" {
			floor = row.SectorP50
			hasFloor = true
			break
		}
	}

	assumptions := []string{"growth decays 20% per year"}
	if hasFloor {
		assumptions = append(assumptions, fmt.Sprintf("growth floored at the sector median of %.0f%%", floor))
	} else {
		assumptions = append(assumptions, "no sector growth floor applied")
	}

	rate := growth
	next := func() float64 {
		rate *= growthDecay
		if hasFloor && rate < floor {
			rate = floor
		}
		return rate
	}

	year1 := arr * (1 + growth/100)
	year3 := year1 * (1 + next()/100) * (1 + next()/100)
	year5 := year3 * (1 + next()/100) * (1 + next()/100)

	return models.RevenueProjection{Year1: year1, Year3: year3, Year5: year5}, growth, assumptions
}

// suggestCheckSize steps the check with the score and caps it at the
// company's current ask.
func suggestCheckSize(score float64, ask *float64) float64 {
	amount := checkSizeBands[len(checkSizeBands)-1].amount
	for _, band := range checkSizeBands {
		if score >= band.minScore {
			amount = band.amount
			break
		}
	}
	if ask != nil && *ask > 0 && amount > *ask {
		amount = *ask
	}
	return amount
}

// valuationCap bounds the entry valuation as ARR times the stage
// multiple band. Pre-revenue companies get no band.
func valuationCap(result *models.AnalysisResult) models.ValuationBand {
	arr := 0.0
	if result.Metrics.Revenue.ARR != nil {
		arr = *result.Metrics.Revenue.ARR
	} else if result.Metrics.Revenue.MRR != nil {
		arr = *result.Metrics.Revenue.MRR * 12
	}
	if arr <= 0 {
		return models.ValuationBand{}
	}

	stage := result.Metrics.Funding.Stage
	if stage == "" {
		stage = result.CompanyProfile.Stage
	}
	multiples, ok := stageMultiples[stage]
	if !ok {
		multiples = defaultMultiples
	}
	return models.ValuationBand{Low: arr * multiples.Low, High: arr * multiples.High}
}

// riskQuestions indexes diligence questions by risk type.
var riskQuestions = map[models.RiskType]string{
	models.RiskFinancialInconsistency: "Reconcile the conflicting financial figures across the data room and provide supporting statements.",
	models.RiskMarketSizeConcern:      "Provide a bottom-up market size model with pricing and segment counts.",
	models.RiskCompetitiveThreat:      "How does the product sustain differentiation against the named competitors?",
	models.RiskTeamGap:                "What is the hiring plan for the identified team gaps?",
	models.RiskProduct:                "What milestones take the product to general availability, and on what timeline?",
	models.RiskRegulatory:             "Which regulatory approvals are required in the target markets, and what is their status?",
	models.RiskTimeline:               "Clarify the funding and founding chronology with dated documentation.",
}

// componentQuestions pair each scored dimension with the question asked
// when its raw score falls under 40.
var componentQuestions = []struct {
	name     string
	question string
}{
	{"market", "What evidence supports the market opportunity beyond the stated TAM?"},
	{"team", "Walk through the founders' backgrounds and why this team wins this market."},
	{"traction", "Share cohort-level retention and revenue data for the last twelve months."},
	{"product", "Demonstrate the product and detail the current deployment footprint."},
	{"competitive", "Map the competitive landscape and the durable moat."},
}

// diligenceQuestions unions risk-derived and weak-component questions,
// deduplicated and capped.
func diligenceQuestions(risks []models.RiskFlag, raw models.ComponentScores) []string {
	var questions []string
	seen := make(map[string]bool)
	add := func(q string) {
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		questions = append(questions, q)
	}

	for _, risk := range risks {
		add(riskQuestions[risk.Type])
	}

	componentScores := map[string]float64{
		"market":      raw.MarketOpportunity,
		"team":        raw.Team,
		"traction":    raw.Traction,
		"product":     raw.Product,
		"competitive": raw.CompetitivePosition,
	}
	for _, c := range componentQuestions {
		if componentScores[c.name] < 40 {
			add(c.question)
		}
	}

	if len(questions) > maxDiligenceQuestions {
		questions = questions[:maxDiligenceQuestions]
	}
	return questions
}

// timeline picks the diligence track.
func timeline(decision models.Recommendation, highRisks int) string {
	switch {
	case decision == models.RecommendStrongBuy && highRisks == 0:
		return timelineFastTrack
	case highRisks >= 1:
		return timelineExtended
	default:
		return timelineStandard
	}
}

// rationale writes the one-paragraph investment reasoning.
func rationale(decision models.Recommendation, breakdown *models.ScoreBreakdown, highRisks int) string {
	score := roundScore(breakdown.TotalScore)
	strongest, weakest := extremeComponents(breakdown.RawComponents)

	switch decision {
	case models.RecommendStrongBuy:
		return fmt.Sprintf("Signal score %.1f with no high-severity risks; %s leads the profile. Move directly to term-sheet diligence.", score, strongest)
	case models.RecommendBuy:
		return fmt.Sprintf("Signal score %.1f supports an investment; %s leads the profile while %s needs diligence attention.", score, strongest, weakest)
	case models.RecommendHold:
		return fmt.Sprintf("Signal score %.1f is not yet investable; revisit after progress on %s.", score, weakest)
	default:
		if highRisks >= 3 {
			return fmt.Sprintf("%d high-severity risks override the %.1f signal score.", highRisks, score)
		}
		return fmt.Sprintf("Signal score %.1f falls short of the investment bar.", score)
	}
}

// extremeComponents names the strongest and weakest raw components.
func extremeComponents(raw models.ComponentScores) (string, string) {
	components := []struct {
		name  string
		score float64
	}{
		{"market opportunity", raw.MarketOpportunity},
		{"team", raw.Team},
		{"traction", raw.Traction},
		{"product", raw.Product},
		{"competitive position", raw.CompetitivePosition},
	}
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].score > components[j].score
	})
	return components[0].name, components[len(components)-1].name
}

// assembleRisks groups the register by severity for the memo.
func assembleRisks(risks []models.RiskFlag, report *models.ConsistencyReport) models.RiskAssessment {
	assessment := models.RiskAssessment{
		HighPriorityRisks:   []models.MemoRisk{},
		MediumPriorityRisks: []models.MemoRisk{},
		LowPriorityRisks:    []models.MemoRisk{},
		OverallRiskLevel:    "LOW",
		ConsistencyScore:    1.0,
	}
	if report != nil {
		assessment.ConsistencyScore = report.OverallScore
	}

	for _, risk := range risks {
		entry := models.MemoRisk{
			Type:        risk.Type,
			Severity:    strings.ToUpper(string(risk.Severity)),
			Description: risk.Description,
			Mitigation:  risk.SuggestedMitigation,
		}
		switch risk.Severity {
		case models.SeverityHigh:
			assessment.HighPriorityRisks = append(assessment.HighPriorityRisks, entry)
		case models.SeverityMedium:
			assessment.MediumPriorityRisks = append(assessment.MediumPriorityRisks, entry)
		default:
			assessment.LowPriorityRisks = append(assessment.LowPriorityRisks, entry)
		}
	}

	switch {
	case len(assessment.HighPriorityRisks) > 0:
		assessment.OverallRiskLevel = "HIGH"
	case len(assessment.MediumPriorityRisks) > 0:
		assessment.OverallRiskLevel = "MEDIUM"
	}
	return assessment
}

// summaryStage prefers the profile stage, falling back to the funding
// record.
func summaryStage(result *models.AnalysisResult) models.FundingStage {
	if result.CompanyProfile.Stage != "" {
		return result.CompanyProfile.Stage
	}
	return result.Metrics.Funding.Stage
}

// sourceDocumentNames lists filenames when documents are attached,
// otherwise the analyzer's document IDs.
func sourceDocumentNames(input *interfaces.MemoInput) []string {
	if len(input.Documents) > 0 {
		names := make([]string, 0, len(input.Documents))
		for _, doc := range input.Documents {
			if doc == nil {
				continue
			}
			if doc.Metadata.Filename != "" {
				names = append(names, doc.Metadata.Filename)
			} else {
				names = append(names, doc.ID)
			}
		}
		return names
	}
	return append([]string(nil), input.Result.SourceDocumentIDs...)
}

// dataQuality averages parser completeness across documents, falling
// back to the analyzer confidence.
func dataQuality(input *interfaces.MemoInput) float64 {
	if len(input.Documents) == 0 {
		return clamp01(input.Result.Confidence)
	}
	total := 0.0
	counted := 0
	for _, doc := range input.Documents {
		if doc == nil {
			continue
		}
		total += doc.Quality.Completeness
		counted++
	}
	if counted == 0 {
		return clamp01(input.Result.Confidence)
	}
	return clamp01(total / float64(counted))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundScore renders the signal score with one decimal inside [0,100].
func roundScore(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}
