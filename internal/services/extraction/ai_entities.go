package extraction

import (
	"github.com/ternarybob/aestimo/internal/models"
)

// DeriveAIEntities flattens an analysis result's typed records into
// entities so they can be reconciled against the pattern catalog and
// indexed by the consistency checker. Derived entities carry the result's
// confidence and its primary source document.
func DeriveAIEntities(result *models.AnalysisResult) []models.ExtractedEntity {
	if result == nil {
		return nil
	}

	sourceID := ""
	if len(result.SourceDocumentIDs) > 0 {
		sourceID = result.SourceDocumentIDs[0]
	}

	var entities []models.ExtractedEntity
	addNumber := func(entityType models.EntityType, name, unit string, value *float64) {
		if value == nil {
			return
		}
		entities = append(entities, models.ExtractedEntity{
			Type:             entityType,
			Name:             name,
			Value:            *value,
			Unit:             unit,
			Confidence:       result.Confidence,
			SourceDocumentID: sourceID,
			ExtractionMethod: models.EntityMethodAI,
		})
	}
	addString := func(entityType models.EntityType, name, value string) {
		if value == "" {
			return
		}
		entities = append(entities, models.ExtractedEntity{
			Type:             entityType,
			Name:             name,
			Value:            value,
			Confidence:       result.Confidence,
			SourceDocumentID: sourceID,
			ExtractionMethod: models.EntityMethodAI,
		})
	}

	profile := result.CompanyProfile
	addString(models.EntityCompany, "company_name", profile.Name)
	addString(models.EntityCompany, "sector", profile.Sector)
	addString(models.EntityCompany, "stage", string(profile.Stage))
	if profile.FoundedYear > 0 {
		year := float64(profile.FoundedYear)
		addNumber(models.EntityCompany, "founded_year", "", &year)
	}

	revenue := result.Metrics.Revenue
	addNumber(models.EntityFinancial, "arr", "USD", revenue.ARR)
	addNumber(models.EntityFinancial, "mrr", "USD", revenue.MRR)
	addNumber(models.EntityFinancial, "growth_rate", "%", revenue.GrowthRate)
	addNumber(models.EntityFinancial, "gross_margin", "%", revenue.GrossMargin)

	traction := result.Metrics.Traction
	addNumber(models.EntityMarket, "customers", "", traction.Customers)
	addNumber(models.EntityMarket, "customer_growth_rate", "%", traction.CustomerGrowthRate)
	addNumber(models.EntityMarket, "churn_rate", "%", traction.ChurnRate)
	addNumber(models.EntityMarket, "nps", "", traction.NPS)
	addNumber(models.EntityMarket, "active_users", "", traction.ActiveUsers)
	addNumber(models.EntityMarket, "conversion_rate", "%", traction.ConversionRate)
	addNumber(models.EntityMarket, "ltv_cac_ratio", "", traction.LTVCACRatio)

	team := result.Metrics.Team
	addNumber(models.EntityTeam, "team_size", "", team.Size)
	addNumber(models.EntityTeam, "founders_count", "", team.FoundersCount)
	addNumber(models.EntityTeam, "burn_rate", "USD", team.BurnRate)
	addNumber(models.EntityTeam, "runway_months", "", team.RunwayMonths)

	funding := result.Metrics.Funding
	addNumber(models.EntityFunding, "total_raised", "USD", funding.TotalRaised)
	addNumber(models.EntityFunding, "last_round_size", "USD", funding.LastRoundSize)
	addNumber(models.EntityFunding, "current_ask", "USD", funding.CurrentAsk)
	addNumber(models.EntityFunding, "valuation", "USD", funding.Valuation)
	if funding.LastRoundDate != nil {
		entities = append(entities, models.ExtractedEntity{
			Type:             models.EntityFunding,
			Name:             "last_round_date",
			Value:            *funding.LastRoundDate,
			Confidence:       result.Confidence,
			SourceDocumentID: sourceID,
			ExtractionMethod: models.EntityMethodAI,
		})
	}

	market := result.MarketClaims
	addNumber(models.EntityMarket, "tam", "USD", market.TAM)
	addNumber(models.EntityMarket, "sam", "USD", market.SAM)
	addNumber(models.EntityMarket, "som", "USD", market.SOM)
	addNumber(models.EntityMarket, "market_growth_rate", "%", market.MarketGrowthRate)

	return entities
}
