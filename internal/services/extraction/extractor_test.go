package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/arbor"
)

func briefDocument(id, text string) *models.ProcessedDocument {
	return &models.ProcessedDocument{
		ID:            id,
		SourceType:    models.SourceTypeText,
		ExtractedText: text,
	}
}

func numericValue(t *testing.T, entity models.ExtractedEntity) float64 {
	t.Helper()
	value, ok := entity.NumericValue()
	require.True(t, ok)
	return value
}

func TestExtractMultiMetricDocument(t *testing.T) {
	text := "Acme Robotics investor brief.\n" +
		"Our ARR of $2M is growing at 15% month over month.\n" +
		"We serve 150 paying customers with an NPS of 72 and monthly churn of 2%.\n" +
		"The company was founded in 2021 by two co-founders and employs a team of 25 people.\n" +
		"To date we have raised $5M against a $50B TAM."

	extractor := NewExtractor(arbor.NewLogger())
	entities := extractor.Extract(briefDocument("doc_brief", text))
	require.Len(t, entities, 10)

	names := make([]string, 0, len(entities))
	byName := make(map[string]models.ExtractedEntity, len(entities))
	for _, entity := range entities {
		names = append(names, entity.Name)
		byName[entity.Name] = entity
	}
	assert.Equal(t, []string{
		"arr", "growth_rate", "customers", "churn_rate", "nps",
		"team_size", "founders_count", "total_raised", "tam", "founded_year",
	}, names)

	values := map[string]float64{
		"arr":            2_000_000,
		"growth_rate":    15,
		"customers":      150,
		"churn_rate":     2,
		"nps":            72,
		"team_size":      25,
		"founders_count": 2,
		"total_raised":   5_000_000,
		"tam":            50_000_000_000,
		"founded_year":   2021,
	}
	for name, expected := range values {
		assert.Equal(t, expected, numericValue(t, byName[name]), name)
	}

	for _, entity := range entities {
		assert.Equal(t, models.EntityMethodPattern, entity.ExtractionMethod, entity.Name)
		assert.Equal(t, 0.8, entity.Confidence, entity.Name)
		assert.Equal(t, "doc_brief", entity.SourceDocumentID, entity.Name)
		assert.NotContains(t, entity.Context, "\n", entity.Name)
	}

	assert.Equal(t, models.EntityFinancial, byName["arr"].Type)
	assert.Equal(t, models.EntityMarket, byName["customers"].Type)
	assert.Equal(t, models.EntityTeam, byName["team_size"].Type)
	assert.Equal(t, models.EntityFunding, byName["total_raised"].Type)
	assert.Equal(t, models.EntityCompany, byName["founded_year"].Type)

	assert.Equal(t, "USD", byName["arr"].Unit)
	assert.Equal(t, "%", byName["growth_rate"].Unit)
	assert.Empty(t, byName["nps"].Unit)

	assert.Contains(t, byName["arr"].Context, "ARR of $2M")
	assert.Contains(t, byName["tam"].Context, "$50B TAM")
}

func TestExtractFirstMatchWins(t *testing.T) {
	text := "ARR of $1M last year. This year we closed with ARR of $3M."

	extractor := NewExtractor(arbor.NewLogger())
	entities := extractor.Extract(briefDocument("doc_arr", text))
	require.Len(t, entities, 1)

	assert.Equal(t, "arr", entities[0].Name)
	assert.Equal(t, float64(1_000_000), numericValue(t, entities[0]))
}

func TestExtractNoMetrics(t *testing.T) {
	text := "A qualitative narrative about the product vision and the roadmap ahead."

	extractor := NewExtractor(arbor.NewLogger())
	assert.Empty(t, extractor.Extract(briefDocument("doc_plain", text)))
}

func TestExtractEmptyDocument(t *testing.T) {
	extractor := NewExtractor(arbor.NewLogger())

	assert.Nil(t, extractor.Extract(nil))
	assert.Nil(t, extractor.Extract(briefDocument("doc_blank", "   \n\t")))
}

func TestSnippetWidensToRuneBoundary(t *testing.T) {
	prefix := strings.Repeat("é", 40)
	text := prefix + " ARR of $2M " + prefix

	start := strings.Index(text, "ARR")
	end := start + len("ARR of $2M")
	context := snippet(text, start, end)

	assert.True(t, strings.HasSuffix(context, "é") || strings.HasPrefix(context, "é"))
	assert.Contains(t, context, "ARR of $2M")
	for _, r := range context {
		assert.NotEqual(t, '�', r)
	}
}
