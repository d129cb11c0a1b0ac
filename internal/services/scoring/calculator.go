// -----------------------------------------------------------------------
// Score Calculator - five weighted components composed into the signal
// score with a confidence figure
// -----------------------------------------------------------------------

package scoring

import (
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.ScoreService = (*Calculator)(nil)

// degradedConfidenceCap bounds confidence when benchmarks were not
// available for the run.
const degradedConfidenceCap = 0.7

// Calculator applies a component strategy and the weight vector.
type Calculator struct {
	strategy Strategy
	logger   arbor.ILogger
}

// NewCalculator builds the calculator; a nil strategy selects the
// reference formulas.
func NewCalculator(strategy Strategy, logger arbor.ILogger) *Calculator {
	if strategy == nil {
		strategy = NewReferenceStrategy()
	}
	return &Calculator{strategy: strategy, logger: logger}
}

// Calculate scores the analysis. Weighted components are raw x weight /
// 100 and the total is their sum. Confidence averages the analyzer
// confidence with benchmark availability (1.0 when present, 0.7 when
// not) and is capped at 0.7 for benchmark-less runs.
func (c *Calculator) Calculate(result *models.AnalysisResult, benchmarks *models.BenchmarkData, w *models.Weightings) (*models.ScoreBreakdown, error) {
	if result == nil {
		return nil, resilience.New(resilience.CategoryValidation, "no_result",
			"score calculation requires an analysis result")
	}

	weights := models.DefaultWeightings()
	if w != nil {
		weights = *w
	}

	raw := c.strategy.Score(&StrategyInput{
		Metrics:     &result.Metrics,
		Claims:      &result.MarketClaims,
		Team:        &result.TeamAssessment,
		Product:     &result.Product,
		Competitive: &result.Competitive,
		Benchmarks:  benchmarks,
	})

	weighted := models.ComponentScores{
		MarketOpportunity:   raw.MarketOpportunity * weights.MarketOpportunity / 100,
		Team:                raw.Team * weights.Team / 100,
		Traction:            raw.Traction * weights.Traction / 100,
		Product:             raw.Product * weights.Product / 100,
		CompetitivePosition: raw.CompetitivePosition * weights.CompetitivePosition / 100,
	}
	total := weighted.Total()

	availability := 1.0
	methodology := "five-component weighted composite against sector percentile benchmarks"
	if benchmarks == nil {
		availability = degradedConfidenceCap
		methodology = "five-component weighted composite with neutral percentile assumption (benchmarks unavailable)"
	}
	confidence := (result.Confidence + availability) / 2
	if benchmarks == nil && confidence > degradedConfidenceCap {
		confidence = degradedConfidenceCap
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	c.logger.Info().
		Float64("market", raw.MarketOpportunity).
		Float64("team", raw.Team).
		Float64("traction", raw.Traction).
		Float64("product", raw.Product).
		Float64("competitive", raw.CompetitivePosition).
		Float64("total", total).
		Float64("confidence", confidence).
		Msg("Score calculated")

	return &models.ScoreBreakdown{
		RawComponents:      raw,
		WeightedComponents: weighted,
		TotalScore:         total,
		Weightings:         weights,
		Confidence:         confidence,
		Methodology:        methodology,
	}, nil
}
