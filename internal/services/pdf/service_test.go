package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const memoMarkdown = `# Deal Memo: Acme Analytics

Usage analytics for B2B SaaS

**Recommendation:** BUY | **Signal Score:** 71.5/100 | **Confidence:** 0.85

## Score Breakdown

| Component | Raw | Weight | Weighted |
|-----------|-----|--------|----------|
| Market Opportunity | 80.0 | 25% | 20.0 |
| Team | 75.0 | 25% | 18.8 |
| **Total** | | | **71.5** |

## Risk Assessment

### High Priority

- **financial_inconsistency**: ARR conflicts across documents
  - Mitigation: reconcile statements

### Diligence Questions

1. Reconcile the conflicting financial figures across the data room.
2. Provide a bottom-up market size model.
`

func TestConvertMarkdownToPDF(t *testing.T) {
	service := NewService(arbor.NewLogger())

	tests := []struct {
		name     string
		markdown string
		title    string
	}{
		{
			name:     "full memo",
			markdown: memoMarkdown,
			title:    "Deal Memo: Acme Analytics",
		},
		{
			name:     "headings and bullets",
			markdown: "# Memo\n\nSummary paragraph.\n\n- first point\n- second point",
			title:    "Short Memo",
		},
		{
			name:     "bold and italic",
			markdown: "Normal **Bold** *Italic* ***BoldItalic***",
			title:    "Styling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.ConvertMarkdownToPDF(tt.markdown, tt.title)
			require.NoError(t, err)
			require.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestConvertMarkdownToPDFRejectsEmpty(t *testing.T) {
	service := NewService(arbor.NewLogger())

	_, err := service.ConvertMarkdownToPDF("", "Empty")
	assert.Error(t, err)
}

func TestConvertMarkdownToPDFTables(t *testing.T) {
	service := NewService(arbor.NewLogger())

	markdown := `# Benchmark Comparison

| Metric | Company | P25 | P50 | P75 | P90 | Percentile | Standing |
|--------|---------|-----|-----|-----|-----|------------|----------|
| arr | $2.0M | $500K | $1.2M | $3.0M | $8.0M | 61 | within |
| growth_rate | 100 | 40 | 80 | 150 | 250 | 57 | within |

End of table.
`
	pdfBytes, err := service.ConvertMarkdownToPDF(markdown, "Benchmarks")
	require.NoError(t, err)
	assert.Greater(t, len(pdfBytes), 500)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestConvertMarkdownToPDFOrderedList(t *testing.T) {
	service := NewService(arbor.NewLogger())

	markdown := "# Questions\n\n1. First question\n2. Second question\n3. Third question"
	pdfBytes, err := service.ConvertMarkdownToPDF(markdown, "Questions")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}
