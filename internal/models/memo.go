package models

import "time"

// Recommendation is the terminal investment call.
type Recommendation string

const (
	RecommendStrongBuy Recommendation = "STRONG_BUY"
	RecommendBuy       Recommendation = "BUY"
	RecommendHold      Recommendation = "HOLD"
	RecommendPass      Recommendation = "PASS"
)

// RiskType enumerates the risk-flag taxonomy.
type RiskType string

const (
	RiskFinancialInconsistency RiskType = "financial_inconsistency"
	RiskMarketSizeConcern      RiskType = "market_size_concern"
	RiskCompetitiveThreat      RiskType = "competitive_threat"
	RiskTeamGap                RiskType = "team_gap"
	RiskProduct                RiskType = "product_risk"
	RiskRegulatory             RiskType = "regulatory"
	RiskTimeline               RiskType = "timeline_inconsistency"
)

// RiskFlag is one entry in the risk register.
type RiskFlag struct {
	ID                  string   `json:"id"`
	Type                RiskType `json:"type"`
	Severity            Severity `json:"severity"`
	Description         string   `json:"description"`
	AffectedMetrics     []string `json:"affectedMetrics,omitempty"`
	SuggestedMitigation string   `json:"suggestedMitigation,omitempty"`
	SourceDocuments     []string `json:"sourceDocuments,omitempty"`
}

// Weightings is the five-way component weight vector. Fields are percent
// points and must sum to 100 within the configured tolerance.
type Weightings struct {
	MarketOpportunity   float64 `json:"marketOpportunity" toml:"market_opportunity" yaml:"market_opportunity" validate:"min=0,max=100"`
	Team                float64 `json:"team" toml:"team" yaml:"team" validate:"min=0,max=100"`
	Traction            float64 `json:"traction" toml:"traction" yaml:"traction" validate:"min=0,max=100"`
	Product             float64 `json:"product" toml:"product" yaml:"product" validate:"min=0,max=100"`
	CompetitivePosition float64 `json:"competitivePosition" toml:"competitive_position" yaml:"competitive_position" validate:"min=0,max=100"`
}

// Sum returns the vector total.
func (w Weightings) Sum() float64 {
	return w.MarketOpportunity + w.Team + w.Traction + w.Product + w.CompetitivePosition
}

// DefaultWeightings is the protected default profile.
func DefaultWeightings() Weightings {
	return Weightings{
		MarketOpportunity:   25,
		Team:                25,
		Traction:            20,
		Product:             15,
		CompetitivePosition: 15,
	}
}

// ComponentScores holds one value per scored dimension.
type ComponentScores struct {
	MarketOpportunity   float64 `json:"marketOpportunity"`
	Team                float64 `json:"team"`
	Traction            float64 `json:"traction"`
	Product             float64 `json:"product"`
	CompetitivePosition float64 `json:"competitivePosition"`
}

// Total returns the sum across components.
func (c ComponentScores) Total() float64 {
	return c.MarketOpportunity + c.Team + c.Traction + c.Product + c.CompetitivePosition
}

// ScoreBreakdown is the calculator output: raw component scores on a
// 0-100 scale, their weighted contributions, and the composite.
type ScoreBreakdown struct {
	RawComponents      ComponentScores `json:"rawComponents"`
	WeightedComponents ComponentScores `json:"weightedComponents"` // raw x weight / 100
	TotalScore         float64         `json:"totalScore"`
	Weightings         Weightings      `json:"weightings"`
	Confidence         float64         `json:"confidence"`
	Methodology        string          `json:"methodology"`
}

// BenchmarkComparison positions one company metric against the sector bands.
type BenchmarkComparison struct {
	Metric         string  `json:"metric"`
	CompanyValue   float64 `json:"companyValue"`
	SectorP25      float64 `json:"sectorP25"`
	SectorP50      float64 `json:"sectorP50"`
	SectorP75      float64 `json:"sectorP75"`
	SectorP90      float64 `json:"sectorP90"`
	PercentileRank int     `json:"percentileRank"` // Integer in [0,100]
	Standing       string  `json:"standing"`       // below | within | above
}

// MemoSummary heads the deal memo.
type MemoSummary struct {
	CompanyName    string         `json:"companyName"`
	OneLiner       string         `json:"oneLiner,omitempty"`
	Sector         string         `json:"sector,omitempty"`
	Stage          FundingStage   `json:"stage,omitempty"`
	SignalScore    float64        `json:"signalScore"` // [0,100], one decimal
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
}

// RevenueProjection carries the decayed growth projection.
type RevenueProjection struct {
	Year1 float64 `json:"year1"`
	Year3 float64 `json:"year3"`
	Year5 float64 `json:"year5"`
}

// GrowthPotential summarizes the forward-looking view.
type GrowthPotential struct {
	ProjectedRevenue RevenueProjection `json:"projectedRevenue"`
	GrowthRate       float64           `json:"growthRate"`            // Percent used for year 1
	Assumptions      []string          `json:"assumptions,omitempty"` // Plain-text notes
}

// MemoRisk is a risk flag rendered for the memo; severity strings are
// upper-case in this representation.
type MemoRisk struct {
	Type        RiskType `json:"type"`
	Severity    string   `json:"severity"` // HIGH | MEDIUM | LOW
	Description string   `json:"description"`
	Mitigation  string   `json:"mitigation,omitempty"`
}

// RiskAssessment groups memo risks by priority.
type RiskAssessment struct {
	HighPriorityRisks   []MemoRisk `json:"highPriorityRisks"`
	MediumPriorityRisks []MemoRisk `json:"mediumPriorityRisks"`
	LowPriorityRisks    []MemoRisk `json:"lowPriorityRisks"`
	OverallRiskLevel    string     `json:"overallRiskLevel"` // HIGH | MEDIUM | LOW
	ConsistencyScore    float64    `json:"consistencyScore"`
}

// ValuationBand is the suggested valuation range.
type ValuationBand struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// InvestmentRecommendation is the actionable part of the memo.
type InvestmentRecommendation struct {
	Decision           Recommendation `json:"decision"`
	Rationale          string         `json:"rationale"`
	SuggestedCheckSize float64        `json:"suggestedCheckSize"`
	ValuationCap       ValuationBand  `json:"valuationCap"`
	DiligenceQuestions []string       `json:"diligenceQuestions,omitempty"` // Max 8
	Timeline           string         `json:"timeline"`
}

// MemoMetadata records provenance for the memo artifact.
type MemoMetadata struct {
	GeneratedBy     string        `json:"generatedBy"`
	AnalysisVersion string        `json:"analysisVersion"`
	SourceDocuments []string      `json:"sourceDocuments"`
	ProcessingTime  time.Duration `json:"processingTime"`
	DataQuality     float64       `json:"dataQuality"` // [0,1]
	GeneratedAt     time.Time     `json:"generatedAt"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// DealMemo is the terminal pipeline artifact. The core emits it and does
// not persist it.
type DealMemo struct {
	ID                       string                   `json:"id"` // memo_{uuid}
	Summary                  MemoSummary              `json:"summary"`
	KeyBenchmarks            []BenchmarkComparison    `json:"keyBenchmarks"`
	GrowthPotential          GrowthPotential          `json:"growthPotential"`
	RiskAssessment           RiskAssessment           `json:"riskAssessment"`
	InvestmentRecommendation InvestmentRecommendation `json:"investmentRecommendation"`
	AnalysisWeightings       Weightings               `json:"analysisWeightings"`
	ScoreBreakdown           ScoreBreakdown           `json:"scoreBreakdown"`
	Metadata                 MemoMetadata             `json:"metadata"`
}
