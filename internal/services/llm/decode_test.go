package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/models"
)

func TestDecodeCompanyProfileWithFences(t *testing.T) {
	response := "```json\n{\"name\": \"Acme\", \"sector\": \"fintech\", \"stage\": \"Series A\", \"founded_year\": 2021}\n```"

	profile, warnings, err := decodeCompanyProfile(response)
	require.NoError(t, err)

	assert.Equal(t, "Acme", profile.Name)
	assert.Equal(t, "fintech", profile.Sector)
	assert.Equal(t, models.StageSeriesA, profile.Stage)
	assert.Equal(t, 2021, profile.FoundedYear)
	assert.Empty(t, warnings)
}

func TestDecodeCompanyProfileRepairsMalformedJSON(t *testing.T) {
	profile, warnings, err := decodeCompanyProfile(`{"name": "Acme",}`)
	require.NoError(t, err)

	assert.Equal(t, "Acme", profile.Name)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "JSON repair")
}

func TestDecodeCompanyProfileUnknownStageWarns(t *testing.T) {
	profile, warnings, err := decodeCompanyProfile(`{"name": "Acme", "stage": "mezzanine"}`)
	require.NoError(t, err)

	assert.Equal(t, models.FundingStage(""), profile.Stage)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "mezzanine")
}

func TestDecodeInvestmentMetricsAllGroups(t *testing.T) {
	response := `{
		"revenue": {"arr": 2000000, "mrr": 166667, "growth_rate": 15},
		"traction": {"customers": 150, "churn_rate": 2.5},
		"team": {"size": 25, "founders_count": 2, "key_hires": ["VP Eng"]},
		"funding": {"total_raised": 5000000, "last_round_date": "2023-06-01", "valuation": 25000000, "stage": "series_a"}
	}`

	metrics, warnings, err := decodeInvestmentMetrics(response)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NotNil(t, metrics.Revenue.ARR)
	assert.Equal(t, float64(2000000), *metrics.Revenue.ARR)
	require.NotNil(t, metrics.Traction.ChurnRate)
	assert.Equal(t, 2.5, *metrics.Traction.ChurnRate)
	require.NotNil(t, metrics.Team.Size)
	assert.Equal(t, float64(25), *metrics.Team.Size)
	assert.Equal(t, []string{"VP Eng"}, metrics.Team.KeyHires)

	require.NotNil(t, metrics.Funding.TotalRaised)
	assert.Equal(t, float64(5000000), *metrics.Funding.TotalRaised)
	require.NotNil(t, metrics.Funding.LastRoundDate)
	assert.Equal(t, "2023-06-01", metrics.Funding.LastRoundDate.Format("2006-01-02"))
	assert.Equal(t, models.StageSeriesA, metrics.Funding.Stage)
}

func TestDecodeInvestmentMetricsDropsMalformedGroup(t *testing.T) {
	response := `{
		"revenue": [2000000],
		"traction": {"customers": 150}
	}`

	metrics, warnings, err := decodeInvestmentMetrics(response)
	require.NoError(t, err)

	assert.Nil(t, metrics.Revenue.ARR)
	require.NotNil(t, metrics.Traction.Customers)
	assert.Equal(t, float64(150), *metrics.Traction.Customers)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "revenue")
}

func TestDecodeInvestmentMetricsUnparseableDateWarns(t *testing.T) {
	response := `{"funding": {"total_raised": 5000000, "last_round_date": "sometime soon"}}`

	metrics, warnings, err := decodeInvestmentMetrics(response)
	require.NoError(t, err)

	assert.Nil(t, metrics.Funding.LastRoundDate)
	require.NotNil(t, metrics.Funding.TotalRaised)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "sometime soon")
}

func TestDecodeInvestmentMetricsMissingGroupsAreZero(t *testing.T) {
	metrics, warnings, err := decodeInvestmentMetrics(`{"revenue": {"arr": 1000000}}`)
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.Nil(t, metrics.Traction.Customers)
	assert.Nil(t, metrics.Funding.TotalRaised)
	require.NotNil(t, metrics.Revenue.ARR)
}

func TestDecodeInvestmentMetricsInvalidEnvelope(t *testing.T) {
	_, _, err := decodeInvestmentMetrics("the documents do not contain metrics")
	assert.Error(t, err)
}

func TestDecodeMarketClaims(t *testing.T) {
	claims, warnings, err := decodeMarketClaims(`{"tam": 50000000000, "sam": 5000000000, "market_description": "warehouse automation"}`)
	require.NoError(t, err)

	assert.Empty(t, warnings)
	require.NotNil(t, claims.TAM)
	assert.Equal(t, float64(50000000000), *claims.TAM)
	assert.Equal(t, "warehouse automation", claims.MarketDescription)
}

func TestDecodeTeamAssessment(t *testing.T) {
	assessment, warnings, err := decodeTeamAssessment(`{"founders_background": "Two PhDs", "strengths": ["domain"], "gaps": ["sales"], "prior_exits": 1}`)
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.Equal(t, "Two PhDs", assessment.FoundersBackground)
	assert.Equal(t, []string{"domain"}, assessment.Strengths)
	require.NotNil(t, assessment.PriorExits)
	assert.Equal(t, float64(1), *assessment.PriorExits)
}

func TestParseLooseDate(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
		year  int
	}{
		{"2023-06-01", true, 2023},
		{"2023-06-01T00:00:00Z", true, 2023},
		{"2023-06", true, 2023},
		{"June 2023", true, 2023},
		{"2023", true, 2023},
		{"next quarter", false, 0},
	}

	for _, tt := range tests {
		date, ok := parseLooseDate(tt.value)
		assert.Equal(t, tt.ok, ok, "value %q", tt.value)
		if tt.ok {
			assert.Equal(t, tt.year, date.Year(), "value %q", tt.value)
		}
	}
}
