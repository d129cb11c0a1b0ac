package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func stringValue(t *testing.T, entity models.ExtractedEntity) string {
	t.Helper()
	value, ok := entity.StringValue()
	require.True(t, ok)
	return value
}

func TestDeriveAIEntities(t *testing.T) {
	roundDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	result := &models.AnalysisResult{
		AnalysisType: "deal_memo",
		CompanyProfile: models.CompanyProfile{
			Name:        "Acme Robotics",
			Sector:      "saas",
			Stage:       models.StageSeed,
			FoundedYear: 2021,
		},
		Metrics: models.InvestmentMetrics{
			Revenue:  models.RevenueMetrics{ARR: floatPtr(2_000_000), GrowthRate: floatPtr(15)},
			Traction: models.TractionMetrics{Customers: floatPtr(150), NPS: floatPtr(72)},
			Team:     models.TeamMetrics{Size: floatPtr(25), FoundersCount: floatPtr(2)},
			Funding:  models.FundingMetrics{TotalRaised: floatPtr(5_000_000), LastRoundDate: &roundDate},
		},
		MarketClaims:      models.MarketClaims{TAM: floatPtr(50_000_000_000)},
		Confidence:        0.85,
		SourceDocumentIDs: []string{"doc_1", "doc_2"},
	}

	entities := DeriveAIEntities(result)
	require.Len(t, entities, 13)

	names := make([]string, 0, len(entities))
	byName := make(map[string]models.ExtractedEntity, len(entities))
	for _, entity := range entities {
		names = append(names, entity.Name)
		byName[entity.Name] = entity

		assert.Equal(t, models.EntityMethodAI, entity.ExtractionMethod, entity.Name)
		assert.Equal(t, 0.85, entity.Confidence, entity.Name)
		assert.Equal(t, "doc_1", entity.SourceDocumentID, entity.Name)
	}
	assert.Equal(t, []string{
		"company_name", "sector", "stage", "founded_year",
		"arr", "growth_rate", "customers", "nps",
		"team_size", "founders_count", "total_raised", "last_round_date", "tam",
	}, names)

	assert.Equal(t, "Acme Robotics", stringValue(t, byName["company_name"]))
	assert.Equal(t, models.EntityCompany, byName["company_name"].Type)
	assert.Equal(t, "seed", stringValue(t, byName["stage"]))

	assert.Equal(t, float64(2021), numericValue(t, byName["founded_year"]))

	assert.Equal(t, float64(2_000_000), numericValue(t, byName["arr"]))
	assert.Equal(t, "USD", byName["arr"].Unit)
	assert.Equal(t, models.EntityFinancial, byName["arr"].Type)

	assert.Equal(t, float64(50_000_000_000), numericValue(t, byName["tam"]))
	assert.Equal(t, models.EntityMarket, byName["tam"].Type)

	lastRound := byName["last_round_date"]
	when, ok := lastRound.TimeValue()
	require.True(t, ok)
	assert.True(t, when.Equal(roundDate))
	assert.Equal(t, models.EntityFunding, lastRound.Type)
}

func TestDeriveAIEntitiesEmpty(t *testing.T) {
	assert.Nil(t, DeriveAIEntities(nil))
	assert.Empty(t, DeriveAIEntities(&models.AnalysisResult{}))
}
