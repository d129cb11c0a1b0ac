package models

import "time"

// FundingStage is the canonical funding-stage enumeration.
type FundingStage string

const (
	StagePreSeed FundingStage = "pre_seed"
	StageSeed    FundingStage = "seed"
	StageSeriesA FundingStage = "series_a"
	StageSeriesB FundingStage = "series_b"
	StageSeriesC FundingStage = "series_c"
	StageGrowth  FundingStage = "growth"
	StageIPO     FundingStage = "ipo"
)

// ParseFundingStage normalizes free-form stage text to the enum, returning
// an empty stage when no variant matches.
func ParseFundingStage(s string) FundingStage {
	switch normalizeStageKey(s) {
	case "pre_seed", "preseed":
		return StagePreSeed
	case "seed":
		return StageSeed
	case "series_a", "a":
		return StageSeriesA
	case "series_b", "b":
		return StageSeriesB
	case "series_c", "c":
		return StageSeriesC
	case "growth", "late_stage":
		return StageGrowth
	case "ipo", "public":
		return StageIPO
	}
	return ""
}

func normalizeStageKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// CompanyProfile is the identity record the analyzer assembles first.
type CompanyProfile struct {
	Name        string       `json:"name"`
	OneLiner    string       `json:"one_liner"`
	Sector      string       `json:"sector"`
	Stage       FundingStage `json:"stage"`
	FoundedYear int          `json:"founded_year,omitempty"`
	Location    string       `json:"location,omitempty"`
	Website     string       `json:"website,omitempty"`
	Description string       `json:"description,omitempty"`
	SocialLinks []string     `json:"social_links,omitempty"`
}

// RevenueMetrics holds recurring-revenue figures. Nil means not reported;
// absence is never treated as zero.
type RevenueMetrics struct {
	ARR          *float64  `json:"arr,omitempty"`
	MRR          *float64  `json:"mrr,omitempty"`
	GrowthRate   *float64  `json:"growth_rate,omitempty"` // Percent, e.g. 15 for 15%
	ProjectedARR []float64 `json:"projected_arr,omitempty"`
	GrossMargin  *float64  `json:"gross_margin,omitempty"`
}

// TractionMetrics holds customer and usage figures.
type TractionMetrics struct {
	Customers          *float64 `json:"customers,omitempty"`
	CustomerGrowthRate *float64 `json:"customer_growth_rate,omitempty"`
	ChurnRate          *float64 `json:"churn_rate,omitempty"`
	NPS                *float64 `json:"nps,omitempty"`
	ActiveUsers        *float64 `json:"active_users,omitempty"`
	ConversionRate     *float64 `json:"conversion_rate,omitempty"`
	LTVCACRatio        *float64 `json:"ltv_cac_ratio,omitempty"`
}

// TeamMetrics holds organization figures.
type TeamMetrics struct {
	Size          *float64 `json:"size,omitempty"`
	FoundersCount *float64 `json:"founders_count,omitempty"`
	KeyHires      []string `json:"key_hires,omitempty"`
	BurnRate      *float64 `json:"burn_rate,omitempty"` // Monthly, dollars
	RunwayMonths  *float64 `json:"runway_months,omitempty"`
}

// FundingMetrics holds capitalization figures.
type FundingMetrics struct {
	TotalRaised   *float64     `json:"total_raised,omitempty"`
	LastRoundSize *float64     `json:"last_round_size,omitempty"`
	LastRoundDate *time.Time   `json:"last_round_date,omitempty"`
	CurrentAsk    *float64     `json:"current_ask,omitempty"`
	Valuation     *float64     `json:"valuation,omitempty"`
	Stage         FundingStage `json:"stage,omitempty"`
}

// InvestmentMetrics groups the four metric families.
type InvestmentMetrics struct {
	Revenue  RevenueMetrics  `json:"revenue"`
	Traction TractionMetrics `json:"traction"`
	Team     TeamMetrics     `json:"team"`
	Funding  FundingMetrics  `json:"funding"`
}

// MarketClaims captures market-size and positioning statements.
type MarketClaims struct {
	TAM               *float64 `json:"tam,omitempty"`
	SAM               *float64 `json:"sam,omitempty"`
	SOM               *float64 `json:"som,omitempty"`
	MarketGrowthRate  *float64 `json:"market_growth_rate,omitempty"`
	MarketDescription string   `json:"market_description,omitempty"`
	TargetCustomer    string   `json:"target_customer,omitempty"`
	GoToMarket        string   `json:"go_to_market,omitempty"`
}

// TeamAssessment captures the analyzer's read on the founding team.
type TeamAssessment struct {
	FoundersBackground string   `json:"founders_background,omitempty"`
	Strengths          []string `json:"strengths,omitempty"`
	Gaps               []string `json:"gaps,omitempty"`
	PriorExits         *float64 `json:"prior_exits,omitempty"`
	DomainExpertise    string   `json:"domain_expertise,omitempty"`
	Completeness       string   `json:"completeness,omitempty"`
}

// ProductProfile captures product maturity statements.
type ProductProfile struct {
	Description      string   `json:"description,omitempty"`
	Differentiators  []string `json:"differentiators,omitempty"`
	TechnologyStack  []string `json:"technology_stack,omitempty"`
	DevelopmentStage string   `json:"development_stage,omitempty"`
	Defensibility    string   `json:"defensibility,omitempty"`
}

// CompetitiveAnalysis captures the competitive landscape read.
type CompetitiveAnalysis struct {
	Competitors    []string `json:"competitors,omitempty"`
	Advantages     []string `json:"advantages,omitempty"`
	Threats        []string `json:"threats,omitempty"`
	MarketPosition string   `json:"market_position,omitempty"`
}

// AnalysisContext carries caller-supplied hints into prompt generation.
type AnalysisContext struct {
	CompanyName         string            `json:"company_name,omitempty"`
	Sector              string            `json:"sector,omitempty"`
	Stage               FundingStage      `json:"stage,omitempty"`
	PromptInstructions  map[string]string `json:"prompt_instructions,omitempty"` // Per-template extra system lines
	PrioritizeRecent    bool              `json:"prioritize_recent,omitempty"`
	RequireAllDocuments bool              `json:"require_all_documents,omitempty"`
}

// AnalysisResult is the per-run extraction output. Only the consistency
// checker may append to ConsistencyFlags after creation.
type AnalysisResult struct {
	AnalysisType      string              `json:"analysis_type"`
	CompanyProfile    CompanyProfile      `json:"company_profile"`
	Metrics           InvestmentMetrics   `json:"metrics"`
	MarketClaims      MarketClaims        `json:"market_claims"`
	TeamAssessment    TeamAssessment      `json:"team_assessment"`
	Product           ProductProfile      `json:"product"`
	Competitive       CompetitiveAnalysis `json:"competitive"`
	Entities          []ExtractedEntity   `json:"entities,omitempty"`
	Confidence        float64             `json:"confidence"`
	ProcessingTime    time.Duration       `json:"processing_time"`
	SourceDocumentIDs []string            `json:"source_document_ids"`
	ConsistencyFlags  []string            `json:"consistency_flags,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
	ExtractedAt       time.Time           `json:"extracted_at"`
}
