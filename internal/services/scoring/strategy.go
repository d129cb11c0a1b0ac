package scoring

import (
	"math"
	"strings"

	"github.com/ternarybob/aestimo/internal/models"
)

// StrategyInput bundles the evidence the component formulas read. A nil
// Benchmarks field switches percentile factors to the neutral p50
// assumption.
type StrategyInput struct {
	Metrics     *models.InvestmentMetrics
	Claims      *models.MarketClaims
	Team        *models.TeamAssessment
	Product     *models.ProductProfile
	Competitive *models.CompetitiveAnalysis
	Benchmarks  *models.BenchmarkData
}

// Strategy derives the five raw component scores on a 0-100 scale. Each
// score is a deterministic function of its inputs; a missing input
// contributes zero to its component.
type Strategy interface {
	Score(input *StrategyInput) models.ComponentScores
}

// NewReferenceStrategy returns the built-in scoring formulas. Callers
// needing different economics supply their own Strategy.
func NewReferenceStrategy() Strategy {
	return referenceStrategy{}
}

type referenceStrategy struct{}

func (s referenceStrategy) Score(input *StrategyInput) models.ComponentScores {
	if input == nil {
		return models.ComponentScores{}
	}
	return models.ComponentScores{
		MarketOpportunity:   round1(s.marketScore(input.Claims)),
		Team:                round1(s.teamScore(input.Metrics, input.Team, input.Benchmarks)),
		Traction:            round1(s.tractionScore(input.Metrics, input.Benchmarks)),
		Product:             round1(s.productScore(input.Product)),
		CompetitivePosition: round1(s.competitiveScore(input.Competitive)),
	}
}

// marketScore grades the demand-side story: TAM magnitude, market growth,
// SAM/SOM articulation, and narrative completeness.
func (referenceStrategy) marketScore(claims *models.MarketClaims) float64 {
	if claims == nil {
		return 0
	}

	var score float64
	if claims.TAM != nil {
		score += 0.40 * stepScore(*claims.TAM, []step{
			{50e9, 100}, {10e9, 85}, {1e9, 65}, {100e6, 40}, {1, 20},
		})
	}
	if claims.MarketGrowthRate != nil {
		score += 0.25 * stepScore(*claims.MarketGrowthRate, []step{
			{30, 100}, {15, 75}, {5, 50}, {0.01, 25},
		})
	}

	switch {
	case claims.SAM != nil && claims.SOM != nil:
		score += 0.15 * 100
	case claims.SAM != nil:
		score += 0.15 * 60
	case claims.SOM != nil:
		score += 0.15 * 40
	}

	narrative := presence(claims.MarketDescription, 50) +
		presence(claims.TargetCustomer, 25) +
		presence(claims.GoToMarket, 25)
	score += 0.20 * narrative

	return clampScore(score)
}

// teamScore grades headcount against the sector, founder composition,
// track record, and the analyzer's strengths/gaps read.
func (referenceStrategy) teamScore(metrics *models.InvestmentMetrics, team *models.TeamAssessment, data *models.BenchmarkData) float64 {
	var score float64

	if metrics != nil {
		score += 0.25 * percentileFactor(metrics.Team.Size, "team_size", data, false)

		if metrics.Team.FoundersCount != nil {
			n := *metrics.Team.FoundersCount
			var factor float64
			switch {
			case n >= 2 && n <= 3:
				factor = 100
			case n == 1 || n == 4:
				factor = 60
			case n > 4:
				factor = 40
			}
			score += 0.15 * factor
		}

		if metrics.Team.RunwayMonths != nil {
			score += 0.10 * stepScore(*metrics.Team.RunwayMonths, []step{
				{18, 100}, {12, 75}, {6, 45}, {1, 20},
			})
		}
	}

	if team != nil {
		if team.PriorExits != nil {
			score += 0.15 * stepScore(*team.PriorExits, []step{{1, 100}, {0, 40}})
		}
		score += 0.15 * presence(team.DomainExpertise, 75)

		balance := clampScore(30*float64(len(team.Strengths)) - 20*float64(len(team.Gaps)))
		score += 0.20 * balance
	}

	return clampScore(score)
}

// tractionScore is benchmark-relative: each reported figure scores its
// sector percentile, churn inverted because lower is better.
func (referenceStrategy) tractionScore(metrics *models.InvestmentMetrics, data *models.BenchmarkData) float64 {
	if metrics == nil {
		return 0
	}

	arr := metrics.Revenue.ARR
	if arr == nil && metrics.Revenue.MRR != nil {
		annualized := *metrics.Revenue.MRR * 12
		arr = &annualized
	}

	var score float64
	score += 0.30 * percentileFactor(arr, "arr", data, false)
	score += 0.25 * percentileFactor(metrics.Revenue.GrowthRate, "growth_rate", data, false)
	score += 0.15 * percentileFactor(metrics.Traction.Customers, "customers", data, false)
	score += 0.10 * percentileFactor(metrics.Traction.ChurnRate, "churn_rate", data, true)
	score += 0.10 * percentileFactor(metrics.Traction.NPS, "nps", data, false)
	score += 0.10 * percentileFactor(metrics.Traction.LTVCACRatio, "ltv_cac_ratio", data, false)
	return clampScore(score)
}

// developmentStages maps stage keywords to maturity scores; first match
// wins, most mature first.
var developmentStages = []struct {
	keyword string
	score   float64
}{
	{"live", 100},
	{"production", 100},
	{"launched", 100},
	{"scaling", 100},
	{"beta", 70},
	{"pilot", 60},
	{"mvp", 50},
	{"prototype", 35},
	{"alpha", 35},
	{"concept", 20},
	{"idea", 20},
}

func stageScore(stage string) float64 {
	s := strings.ToLower(strings.TrimSpace(stage))
	if s == "" {
		return 0
	}
	for _, entry := range developmentStages {
		if strings.Contains(s, entry.keyword) {
			return entry.score
		}
	}
	return 40
}

// productScore grades maturity, differentiation, and defensibility.
func (referenceStrategy) productScore(p *models.ProductProfile) float64 {
	if p == nil {
		return 0
	}

	var score float64
	score += 0.35 * stageScore(p.DevelopmentStage)
	score += 0.25 * clampScore(30*float64(len(p.Differentiators)))
	score += 0.20 * presence(p.Defensibility, 75)
	if len(p.TechnologyStack) > 0 {
		score += 0.10 * 60
	}
	score += 0.10 * presence(p.Description, 50)
	return clampScore(score)
}

// competitiveScore grades how well the landscape is mapped and how the
// company claims to stand in it.
func (referenceStrategy) competitiveScore(c *models.CompetitiveAnalysis) float64 {
	if c == nil {
		return 0
	}

	var score float64
	score += 0.35 * clampScore(30*float64(len(c.Advantages)))
	score += 0.25 * presence(c.MarketPosition, 70)

	switch n := len(c.Competitors); {
	case n == 0:
	case n <= 5:
		score += 0.20 * 80
	default:
		score += 0.20 * 60
	}

	switch n := len(c.Threats); {
	case n == 0:
	case n <= 3:
		score += 0.20 * 60
	default:
		score += 0.20 * 40
	}

	return clampScore(score)
}

// neutralRank stands in for a sector percentile when benchmarks are
// unavailable or the band is missing.
const neutralRank = 50

// percentileFactor positions a reported value in its sector band. Nil
// values contribute nothing; a missing band falls back to the neutral
// rank. Inverted metrics (churn) count distance from the top.
func percentileFactor(value *float64, metric string, data *models.BenchmarkData, invert bool) float64 {
	if value == nil {
		return 0
	}
	rank := float64(neutralRank)
	if data != nil {
		if band, ok := data.Metrics[metric]; ok {
			rank = float64(band.PercentileRank(*value))
		}
	}
	if invert {
		rank = 100 - rank
	}
	return rank
}

type step struct {
	min   float64
	score float64
}

// stepScore returns the score of the first step the value reaches, or
// zero below every step.
func stepScore(value float64, steps []step) float64 {
	for _, s := range steps {
		if value >= s.min {
			return s.score
		}
	}
	return 0
}

func presence(s string, score float64) float64 {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return score
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
