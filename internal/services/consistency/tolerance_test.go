package consistency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
)

func defaultTolerances(t *testing.T) tolerances {
	t.Helper()
	return newTolerances(common.NewDefaultConfig())
}

func TestEquivalentPercentage(t *testing.T) {
	tol := defaultTolerances(t)

	assert.True(t, tol.equivalent(classPercentage, 2.5, 4.5))
	assert.False(t, tol.equivalent(classPercentage, 2.5, 4.6))
	assert.True(t, tol.equivalent(classPercentage, float64(72), float64(70)))
	assert.False(t, tol.equivalent(classPercentage, float64(72), float64(69)))
}

func TestEquivalentCount(t *testing.T) {
	tol := defaultTolerances(t)

	assert.True(t, tol.equivalent(classCount, float64(100), float64(110)))
	assert.False(t, tol.equivalent(classCount, float64(100), float64(112)))
	assert.True(t, tol.equivalent(classCount, float64(0), float64(0)))
}

func TestEquivalentFinancial(t *testing.T) {
	tol := defaultTolerances(t)

	assert.True(t, tol.equivalent(classFinancial, float64(2_000_000), float64(2_100_000)))
	assert.False(t, tol.equivalent(classFinancial, float64(2_000_000), float64(3_000_000)))
}

func TestEquivalentDates(t *testing.T) {
	tol := defaultTolerances(t)

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, tol.equivalent(classDate, base, base.AddDate(0, 6, 0)))
	assert.False(t, tol.equivalent(classDate, base, base.AddDate(2, 0, 0)))

	assert.True(t, tol.equivalent(classDate, float64(2021), float64(2022)))
	assert.False(t, tol.equivalent(classDate, float64(2021), float64(2023)))
}

func TestEquivalentStrings(t *testing.T) {
	tol := defaultTolerances(t)

	assert.True(t, tol.equivalent(classString, "SaaS", "saas"))
	assert.True(t, tol.equivalent(classString, " fintech ", "fintech"))
	assert.False(t, tol.equivalent(classString, "saas", "fintech"))
}

func TestEquivalentMixedShapes(t *testing.T) {
	tol := defaultTolerances(t)

	assert.False(t, tol.equivalent(classString, "2021", float64(2021)))
	assert.False(t, tol.equivalent(classDate, time.Now(), float64(2021)))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, classFinancial, classify("arr", nil))
	assert.Equal(t, classPercentage, classify("churn_rate", nil))
	assert.Equal(t, classCount, classify("customers", nil))
	assert.Equal(t, classDate, classify("founded_year", nil))
	assert.Equal(t, classString, classify("sector", nil))

	assert.Equal(t, classString, classify("mystery", []models.MetricValue{{Value: "hello"}}))
	assert.Equal(t, classDate, classify("mystery", []models.MetricValue{{Value: time.Now()}}))
	assert.Equal(t, classCount, classify("mystery", []models.MetricValue{{Value: float64(7)}}))
}

func TestGroupValues(t *testing.T) {
	tol := defaultTolerances(t)

	values := []models.MetricValue{
		{Value: float64(2_000_000), Source: "doc_a", Confidence: 0.8},
		{Value: float64(2_050_000), Source: "doc_b", Confidence: 0.9},
		{Value: float64(3_000_000), Source: "doc_c", Confidence: 0.7},
	}

	groups := tol.groupValues(classFinancial, values)
	require.Len(t, groups, 2)

	assert.Equal(t, float64(2_000_000), groups[0].Representative)
	assert.Len(t, groups[0].Values, 2)
	assert.InDelta(t, 0.85, groups[0].MeanConfidence, 1e-9)

	assert.Equal(t, float64(3_000_000), groups[1].Representative)
	assert.Len(t, groups[1].Values, 1)
	assert.InDelta(t, 0.7, groups[1].MeanConfidence, 1e-9)
}
