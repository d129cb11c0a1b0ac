package parsers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.OCRService = (*stubOCR)(nil)

// stubOCR returns a canned result for every detection call.
type stubOCR struct {
	result *models.OCRResult
	err    error
	calls  int
}

func (s *stubOCR) DetectDocument(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	return s.result, s.err
}

func (s *stubOCR) DetectText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	return s.result, s.err
}

func (s *stubOCR) ExtractText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubOCR) HealthCheck(ctx context.Context) error { return nil }

// wordBlock produces sixty words of prose starting with the prefix.
func wordBlock(prefix string) string {
	sentence := prefix + " warehouse robots from Acme will move goods for all teams with speed and care. "
	return strings.Repeat(sentence, 4)
}

// buildPDF renders one page of text per entry.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, page := range pages {
		pdf.AddPage()
		pdf.MultiCell(190, 6, page, "", "L", false)
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func buildBlankPDF(t *testing.T) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func newPDFParser(t *testing.T, cfg *common.Config, ocr interfaces.OCRService, degradation *resilience.Degradation) *PDFParser {
	t.Helper()
	if cfg == nil {
		cfg = common.NewDefaultConfig()
	}
	return NewPDFParser(cfg, ocr, degradation, arbor.NewLogger())
}

func TestPDFParseTextLayer(t *testing.T) {
	data := buildPDF(t, wordBlock("The"))

	parser := newPDFParser(t, nil, nil, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: data})
	require.NoError(t, err)

	assert.Equal(t, models.SourceTypePDF, doc.SourceType)
	assert.Equal(t, models.ExtractionText, doc.ExtractionMethod)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, 60, doc.WordCount)
	assert.Equal(t, "en", doc.Language)
	assert.Empty(t, doc.Warnings)
	assert.NotEmpty(t, doc.Sections)
	assert.InDelta(t, 0.4, doc.Quality.Completeness, 1e-9)
}

func TestPDFParseMultiPageOrder(t *testing.T) {
	data := buildPDF(t, wordBlock("Alpha"), wordBlock("Beta"))

	parser := newPDFParser(t, nil, nil, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: data})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, 120, doc.WordCount)
	assert.Less(t, strings.Index(doc.ExtractedText, "Alpha"), strings.Index(doc.ExtractedText, "Beta"))
}

func TestPDFParseBlankPageFallsBackToOCR(t *testing.T) {
	ocr := &stubOCR{
		result: &models.OCRResult{
			Text:       "EXECUTIVE SUMMARY\nAcme automates warehouses with robots for all regions and teams.",
			Confidence: 0.9,
			Language:   "en",
			Pages: []models.OCRPage{
				{
					PageNumber: 1,
					Blocks: []models.OCRBlock{
						{Text: "EXECUTIVE SUMMARY", Confidence: 0.95, BoundingBox: models.BoundingBox{X: 10, Y: 40, Width: 200, Height: 20}},
						{Text: "Acme automates warehouses with robots for all regions and teams.", Confidence: 0.85, BoundingBox: models.BoundingBox{X: 10, Y: 200, Width: 400, Height: 40}},
					},
				},
			},
			Warnings: []string{"synthetic-warning"},
		},
	}

	parser := newPDFParser(t, nil, ocr, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "scan.pdf", Data: buildBlankPDF(t)})
	require.NoError(t, err)

	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, models.ExtractionOCR, doc.ExtractionMethod)
	assert.Equal(t, "en", doc.Language)
	assert.Contains(t, doc.ExtractedText, "EXECUTIVE SUMMARY")

	joined := strings.Join(doc.Warnings, " | ")
	assert.Contains(t, joined, "text layer appears unusable")
	assert.Contains(t, joined, "synthetic-warning")

	require.NotEmpty(t, doc.Sections)
	assert.Equal(t, "EXECUTIVE SUMMARY", doc.Sections[0].Title)
	assert.Equal(t, "scan.pdf", doc.Sections[0].SourceDocument)
}

func TestPDFParseHybridKeepsLongerText(t *testing.T) {
	ocr := &stubOCR{
		result: &models.OCRResult{
			Text:       "Brief note recovered by vision with much more of the page transcribed than the text layer had.",
			Confidence: 0.8,
		},
	}

	parser := newPDFParser(t, nil, ocr, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: buildPDF(t, "Brief note")})
	require.NoError(t, err)

	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, models.ExtractionHybrid, doc.ExtractionMethod)
	assert.Contains(t, doc.ExtractedText, "transcribed")
}

func TestPDFParseOCRFailureKeepsTextLayer(t *testing.T) {
	ocr := &stubOCR{err: errors.New("vision outage")}

	parser := newPDFParser(t, nil, ocr, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: buildPDF(t, "Brief note")})
	require.NoError(t, err)

	assert.Equal(t, models.ExtractionText, doc.ExtractionMethod)
	assert.Contains(t, doc.ExtractedText, "Brief note")
	assert.Contains(t, strings.Join(doc.Warnings, " | "), "OCR fallback failed")
}

func TestPDFParseOCRDisabled(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.OCR.Enabled = false
	ocr := &stubOCR{}

	parser := newPDFParser(t, cfg, ocr, nil)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: buildPDF(t, "Brief note")})
	require.NoError(t, err)

	assert.Zero(t, ocr.calls)
	assert.Contains(t, strings.Join(doc.Warnings, " | "), "OCR disabled by configuration")
}

func TestPDFParseOCRSkippedWhenDegraded(t *testing.T) {
	degradation := resilience.NewDegradation([]string{"llm"}, arbor.NewLogger())
	degradation.SetAvailable("ocr", false)
	ocr := &stubOCR{}

	parser := newPDFParser(t, nil, ocr, degradation)
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "brief.pdf", Data: buildPDF(t, "Brief note")})
	require.NoError(t, err)

	assert.Zero(t, ocr.calls)
	assert.Contains(t, strings.Join(doc.Warnings, " | "), "OCR service is marked unavailable")
}

func TestPDFParseRejectsGarbage(t *testing.T) {
	parser := newPDFParser(t, nil, nil, nil)
	_, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "broken.pdf", Data: []byte("garbage")})
	require.Error(t, err)

	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CategoryDocumentProcessing, rerr.Category)
	assert.Equal(t, "pdf_unreadable", rerr.Code)
	assert.False(t, rerr.Retryable)
}

func TestNeedsOCR(t *testing.T) {
	tests := []struct {
		name      string
		byteSize  int
		textChars int
		words     int
		pages     int
		needed    bool
		reasons   int
	}{
		{"dense text layer", 10_000, 600, 120, 2, false, 0},
		{"sparse density", 100_000, 500, 120, 2, true, 1},
		{"few words per page", 10_000, 600, 40, 2, true, 1},
		{"large file little text", 200_000, 512, 60, 1, true, 2},
		{"empty layer", 5_000, 0, 0, 0, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			needed, reasons := needsOCR(tt.byteSize, tt.textChars, tt.words, tt.pages)
			assert.Equal(t, tt.needed, needed)
			assert.Len(t, reasons, tt.reasons)
		})
	}
}

func TestTextFromContentStream(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		expected string
	}{
		{
			name:     "literals split on line operators",
			stream:   `BT (Hello) Tj (World) Tj ET`,
			expected: "Hello World\n",
		},
		{
			name:     "escaped parenthesis",
			stream:   `(Line one\) done) Tj T*`,
			expected: "Line one) done\n",
		},
		{
			name:     "octal escapes decode",
			stream:   `(\101cme) Tj ET`,
			expected: "Acme\n",
		},
		{
			name:     "nested parentheses",
			stream:   `(outer (inner) tail) Tj ET`,
			expected: "outer (inner) tail\n",
		},
		{
			name:     "escaped newline",
			stream:   `(a\nb) Tj ET`,
			expected: "a\nb\n",
		},
		{
			name:     "no literals",
			stream:   `q 1 0 0 1 0 0 cm Q`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textFromContentStream(tt.stream))
		})
	}
}

func TestPDFSupports(t *testing.T) {
	parser := newPDFParser(t, nil, nil, nil)

	assert.True(t, parser.Supports("brief.pdf", ""))
	assert.True(t, parser.Supports("BRIEF.PDF", "application/octet-stream"))
	assert.True(t, parser.Supports("", "application/pdf"))
	assert.False(t, parser.Supports("brief.docx", "application/pdf"))
	assert.False(t, parser.Supports("", "text/plain"))
}
