package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/aestimo/internal/models"
)

// mergeResults folds the per-document analyses into the single result the
// scorer and memo consume. Scalar fields take the value from the highest
// confidence analysis that reports them, with document order breaking
// ties; list fields union in the same precedence order. Conflicting
// values are not resolved here: the consistency report carries them and
// its issues land on the merged result as flags.
func mergeResults(results []*models.AnalysisResult, report *models.ConsistencyReport) *models.AnalysisResult {
	live := make([]*models.AnalysisResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return nil
	}

	ordered := make([]*models.AnalysisResult, len(live))
	copy(ordered, live)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	firstStr := func(pick func(*models.AnalysisResult) string) string {
		for _, r := range ordered {
			if v := pick(r); v != "" {
				return v
			}
		}
		return ""
	}
	firstInt := func(pick func(*models.AnalysisResult) int) int {
		for _, r := range ordered {
			if v := pick(r); v != 0 {
				return v
			}
		}
		return 0
	}
	firstStage := func(pick func(*models.AnalysisResult) models.FundingStage) models.FundingStage {
		for _, r := range ordered {
			if v := pick(r); v != "" {
				return v
			}
		}
		return ""
	}
	firstFloat := func(pick func(*models.AnalysisResult) *float64) *float64 {
		for _, r := range ordered {
			if p := pick(r); p != nil {
				v := *p
				return &v
			}
		}
		return nil
	}
	firstTime := func(pick func(*models.AnalysisResult) *time.Time) *time.Time {
		for _, r := range ordered {
			if p := pick(r); p != nil {
				v := *p
				return &v
			}
		}
		return nil
	}
	firstFloats := func(pick func(*models.AnalysisResult) []float64) []float64 {
		for _, r := range ordered {
			if v := pick(r); len(v) > 0 {
				out := make([]float64, len(v))
				copy(out, v)
				return out
			}
		}
		return nil
	}
	unionStrs := func(pick func(*models.AnalysisResult) []string) []string {
		var out []string
		seen := make(map[string]bool)
		for _, r := range ordered {
			for _, v := range pick(r) {
				if v == "" || seen[v] {
					continue
				}
				seen[v] = true
				out = append(out, v)
			}
		}
		return out
	}

	var (
		entities   []models.ExtractedEntity
		sourceIDs  []string
		warnings   []string
		confidence float64
		processing time.Duration
	)
	seenID := make(map[string]bool)
	seenWarning := make(map[string]bool)
	for _, r := range live {
		entities = append(entities, r.Entities...)
		confidence += r.Confidence
		processing += r.ProcessingTime
		for _, id := range r.SourceDocumentIDs {
			if !seenID[id] {
				seenID[id] = true
				sourceIDs = append(sourceIDs, id)
			}
		}
		for _, w := range r.Warnings {
			if w != "" && !seenWarning[w] {
				seenWarning[w] = true
				warnings = append(warnings, w)
			}
		}
	}

	return &models.AnalysisResult{
		AnalysisType: firstStr(func(r *models.AnalysisResult) string { return r.AnalysisType }),
		CompanyProfile: models.CompanyProfile{
			Name:        firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.Name }),
			OneLiner:    firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.OneLiner }),
			Sector:      firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.Sector }),
			Stage:       firstStage(func(r *models.AnalysisResult) models.FundingStage { return r.CompanyProfile.Stage }),
			FoundedYear: firstInt(func(r *models.AnalysisResult) int { return r.CompanyProfile.FoundedYear }),
			Location:    firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.Location }),
			Website:     firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.Website }),
			Description: firstStr(func(r *models.AnalysisResult) string { return r.CompanyProfile.Description }),
			SocialLinks: unionStrs(func(r *models.AnalysisResult) []string { return r.CompanyProfile.SocialLinks }),
		},
		Metrics: models.InvestmentMetrics{
			Revenue: models.RevenueMetrics{
				ARR:          firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Revenue.ARR }),
				MRR:          firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Revenue.MRR }),
				GrowthRate:   firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Revenue.GrowthRate }),
				ProjectedARR: firstFloats(func(r *models.AnalysisResult) []float64 { return r.Metrics.Revenue.ProjectedARR }),
				GrossMargin:  firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Revenue.GrossMargin }),
			},
			Traction: models.TractionMetrics{
				Customers:          firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.Customers }),
				CustomerGrowthRate: firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.CustomerGrowthRate }),
				ChurnRate:          firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.ChurnRate }),
				NPS:                firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.NPS }),
				ActiveUsers:        firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.ActiveUsers }),
				ConversionRate:     firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.ConversionRate }),
				LTVCACRatio:        firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Traction.LTVCACRatio }),
			},
			Team: models.TeamMetrics{
				Size:          firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Team.Size }),
				FoundersCount: firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Team.FoundersCount }),
				KeyHires:      unionStrs(func(r *models.AnalysisResult) []string { return r.Metrics.Team.KeyHires }),
				BurnRate:      firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Team.BurnRate }),
				RunwayMonths:  firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Team.RunwayMonths }),
			},
			Funding: models.FundingMetrics{
				TotalRaised:   firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Funding.TotalRaised }),
				LastRoundSize: firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Funding.LastRoundSize }),
				LastRoundDate: firstTime(func(r *models.AnalysisResult) *time.Time { return r.Metrics.Funding.LastRoundDate }),
				CurrentAsk:    firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Funding.CurrentAsk }),
				Valuation:     firstFloat(func(r *models.AnalysisResult) *float64 { return r.Metrics.Funding.Valuation }),
				Stage:         firstStage(func(r *models.AnalysisResult) models.FundingStage { return r.Metrics.Funding.Stage }),
			},
		},
		MarketClaims: models.MarketClaims{
			TAM:               firstFloat(func(r *models.AnalysisResult) *float64 { return r.MarketClaims.TAM }),
			SAM:               firstFloat(func(r *models.AnalysisResult) *float64 { return r.MarketClaims.SAM }),
			SOM:               firstFloat(func(r *models.AnalysisResult) *float64 { return r.MarketClaims.SOM }),
			MarketGrowthRate:  firstFloat(func(r *models.AnalysisResult) *float64 { return r.MarketClaims.MarketGrowthRate }),
			MarketDescription: firstStr(func(r *models.AnalysisResult) string { return r.MarketClaims.MarketDescription }),
			TargetCustomer:    firstStr(func(r *models.AnalysisResult) string { return r.MarketClaims.TargetCustomer }),
			GoToMarket:        firstStr(func(r *models.AnalysisResult) string { return r.MarketClaims.GoToMarket }),
		},
		TeamAssessment: models.TeamAssessment{
			FoundersBackground: firstStr(func(r *models.AnalysisResult) string { return r.TeamAssessment.FoundersBackground }),
			Strengths:          unionStrs(func(r *models.AnalysisResult) []string { return r.TeamAssessment.Strengths }),
			Gaps:               unionStrs(func(r *models.AnalysisResult) []string { return r.TeamAssessment.Gaps }),
			PriorExits:         firstFloat(func(r *models.AnalysisResult) *float64 { return r.TeamAssessment.PriorExits }),
			DomainExpertise:    firstStr(func(r *models.AnalysisResult) string { return r.TeamAssessment.DomainExpertise }),
			Completeness:       firstStr(func(r *models.AnalysisResult) string { return r.TeamAssessment.Completeness }),
		},
		Product: models.ProductProfile{
			Description:      firstStr(func(r *models.AnalysisResult) string { return r.Product.Description }),
			Differentiators:  unionStrs(func(r *models.AnalysisResult) []string { return r.Product.Differentiators }),
			TechnologyStack:  unionStrs(func(r *models.AnalysisResult) []string { return r.Product.TechnologyStack }),
			DevelopmentStage: firstStr(func(r *models.AnalysisResult) string { return r.Product.DevelopmentStage }),
			Defensibility:    firstStr(func(r *models.AnalysisResult) string { return r.Product.Defensibility }),
		},
		Competitive: models.CompetitiveAnalysis{
			Competitors:    unionStrs(func(r *models.AnalysisResult) []string { return r.Competitive.Competitors }),
			Advantages:     unionStrs(func(r *models.AnalysisResult) []string { return r.Competitive.Advantages }),
			Threats:        unionStrs(func(r *models.AnalysisResult) []string { return r.Competitive.Threats }),
			MarketPosition: firstStr(func(r *models.AnalysisResult) string { return r.Competitive.MarketPosition }),
		},
		Entities:          entities,
		Confidence:        confidence / float64(len(live)),
		ProcessingTime:    processing,
		SourceDocumentIDs: sourceIDs,
		ConsistencyFlags:  consistencyFlags(report),
		Warnings:          warnings,
		ExtractedAt:       time.Now().UTC(),
	}
}

// consistencyFlags renders the report's issues as compact type:metric
// markers on the merged result.
func consistencyFlags(report *models.ConsistencyReport) []string {
	if report == nil || len(report.Issues) == 0 {
		return nil
	}
	flags := make([]string, 0, len(report.Issues))
	for _, issue := range report.Issues {
		flags = append(flags, fmt.Sprintf("%s:%s", issue.Type, issue.Metric))
	}
	return flags
}
