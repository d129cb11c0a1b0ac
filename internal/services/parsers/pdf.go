// -----------------------------------------------------------------------
// PDF Parser - text-layer extraction via pdfcpu with vision OCR fallback
// for scanned or text-sparse documents
// -----------------------------------------------------------------------

package parsers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.DocumentParser = (*PDFParser)(nil)

const (
	// OCR trigger thresholds. Any one marks the text layer unusable.
	minTextDensity  = 0.01       // chars of text per byte of file
	minWordsPerPage = 50         // whitespace tokens per page
	largeFileBytes  = 100 * 1024 // file size above which...
	minTextForLarge = 1024       // ...this much text is expected

	// pdfNominalWordsPerPage is the per-page completeness expectation.
	pdfNominalWordsPerPage = 150
)

// pageNumberRegex pulls the page number out of an extracted content file
// name; pdfcpu has used both "page_N" and "Content_page_N" naming.
var pageNumberRegex = regexp.MustCompile(`(\d+)`)

// PDFParser handles PDF documents. The native text layer is extracted
// first; when it looks unusable the raw bytes go to the vision OCR
// service, subject to the degradation registry.
type PDFParser struct {
	ocrService    interfaces.OCRService
	degradation   *resilience.Degradation
	ocrEnabled    bool
	languageHints []string
	logger        arbor.ILogger
	tempDir       string
}

// NewPDFParser creates the PDF parser. The OCR service and degradation
// registry may be nil; the parser then keeps whatever the text layer
// yields and records a warning.
func NewPDFParser(cfg *common.Config, ocrService interfaces.OCRService, degradation *resilience.Degradation, logger arbor.ILogger) *PDFParser {
	tempDir := filepath.Join(os.TempDir(), "aestimo-pdf")
	os.MkdirAll(tempDir, 0755)

	return &PDFParser{
		ocrService:    ocrService,
		degradation:   degradation,
		ocrEnabled:    cfg.OCR.Enabled,
		languageHints: cfg.OCR.LanguageHints,
		logger:        logger,
		tempDir:       tempDir,
	}
}

// Supports reports whether the document is a PDF.
func (p *PDFParser) Supports(filename, mimeType string) bool {
	if strings.ToLower(filepath.Ext(filename)) == ".pdf" {
		return true
	}
	return filename == "" && mimeType == "application/pdf"
}

// SourceType returns the format identifier.
func (p *PDFParser) SourceType() models.SourceType {
	return models.SourceTypePDF
}

// Parse extracts the text layer and falls back to OCR when the layer
// looks unusable. The extraction method records which layers contributed:
// text, ocr, or hybrid when both produced content.
func (p *PDFParser) Parse(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error) {
	startTime := time.Now()

	pages, pageCount, extractWarnings, err := p.extractTextLayer(raw.Data)
	if err != nil {
		return nil, err
	}
	textLayer := normalizeText(strings.Join(pages, "\n\n"))

	result := &parseResult{
		pageCount: pageCount,
		warnings:  extractWarnings,
	}

	var ocrResult *models.OCRResult
	ocrNeeded, reasons := needsOCR(len(raw.Data), len(textLayer), countWords(textLayer), pageCount)
	if ocrNeeded {
		result.ocrRequired = true
		result.warnings = append(result.warnings, fmt.Sprintf("text layer appears unusable (%s)", strings.Join(reasons, "; ")))

		if reason, unavailable := p.ocrUnavailable(); unavailable {
			result.warnings = append(result.warnings, "OCR fallback skipped: "+reason)
		} else {
			res, ocrErr := p.ocrService.ExtractText(ctx, raw.Data, p.languageHints)
			if ocrErr != nil {
				if ctx.Err() != nil {
					return nil, resilience.NewCancelled("PDF parsing")
				}
				p.logger.Warn().Err(ocrErr).Str("filename", raw.Filename).Msg("OCR fallback failed, keeping text layer")
				result.warnings = append(result.warnings, fmt.Sprintf("OCR fallback failed: %v", ocrErr))
			} else {
				ocrResult = res
				result.warnings = append(result.warnings, res.Warnings...)
			}
		}
	}

	var ocrText string
	if ocrResult != nil {
		ocrText = normalizeText(ocrResult.Text)
	}

	textHas := textLayer != ""
	ocrHas := ocrText != ""
	switch {
	case textHas && ocrHas:
		result.method = models.ExtractionHybrid
		if len(ocrText) > len(textLayer) {
			result.text = ocrText
		} else {
			result.text = textLayer
		}
	case ocrHas:
		result.method = models.ExtractionOCR
		result.text = ocrText
	default:
		result.method = models.ExtractionText
		result.text = textLayer
	}

	// OCR block positions give better sections than line heuristics when
	// the OCR output is what we kept.
	if ocrResult != nil && result.text == ocrText {
		result.sections = sectionsFromBlocks(ocrResult, raw.Filename)
	}
	if len(result.sections) == 0 {
		result.sections = segmentText(result.text, raw.Filename)
	}

	if ocrResult != nil {
		result.language = ocrResult.Language
		if result.pageCount == 0 {
			result.pageCount = len(ocrResult.Pages)
		}
	}

	return assembleDocument(raw, models.SourceTypePDF, result, pdfNominalWordsPerPage, startTime), nil
}

// ocrUnavailable reports why the OCR fallback cannot run, if it cannot.
func (p *PDFParser) ocrUnavailable() (string, bool) {
	if p.ocrService == nil {
		return "no OCR capability configured", true
	}
	if !p.ocrEnabled {
		return "OCR disabled by configuration", true
	}
	if p.degradation != nil && !p.degradation.Available("ocr") {
		return "OCR service is marked unavailable", true
	}
	return "", false
}

// needsOCR applies the text-layer usability triggers and reports the
// reasons that fired.
func needsOCR(byteSize, textChars, words, pages int) (bool, []string) {
	var reasons []string

	if byteSize > 0 {
		density := float64(textChars) / float64(byteSize)
		if density < minTextDensity {
			reasons = append(reasons, fmt.Sprintf("text density %.4f chars/byte", density))
		}
	}

	pageDivisor := pages
	if pageDivisor < 1 {
		pageDivisor = 1
	}
	if wordsPerPage := words / pageDivisor; wordsPerPage < minWordsPerPage {
		reasons = append(reasons, fmt.Sprintf("%d words per page", wordsPerPage))
	}

	if byteSize > largeFileBytes && textChars < minTextForLarge {
		reasons = append(reasons, "large file with under 1 KB of extracted text")
	}

	return len(reasons) > 0, reasons
}

// extractTextLayer runs pdfcpu over the document. pdfcpu works on files,
// so the bytes go through a uniquely named temp file; extracted page
// content streams are read back and reduced to their text operators.
func (p *PDFParser) extractTextLayer(data []byte) ([]string, int, []string, error) {
	tempName := fmt.Sprintf("extract_%s", uuid.New().String())
	tempFile := filepath.Join(p.tempDir, tempName+".pdf")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, 0, nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "pdf_tempfile", "failed to stage PDF for extraction")
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, 0, nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "pdf_unreadable", "failed to read PDF structure")
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(p.tempDir, tempName+"_pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, 0, nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "pdf_tempdir", "failed to create extraction directory")
	}
	defer os.RemoveAll(outDir)

	var warnings []string
	if err := api.ExtractContentFile(tempFile, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		p.logger.Warn().Err(err).Msg("PDF content extraction failed, treating text layer as empty")
		warnings = append(warnings, fmt.Sprintf("content extraction failed: %v", err))
		return make([]string, pageCount), pageCount, warnings, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, 0, nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "pdf_content", "failed to list extracted content")
	}

	pageTexts := make(map[int]string, pageCount)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, readErr := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if readErr != nil {
			warnings = append(warnings, fmt.Sprintf("page content %s could not be read: %v", entry.Name(), readErr))
			continue
		}
		matches := pageNumberRegex.FindAllString(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())), -1)
		if len(matches) == 0 {
			continue
		}
		pageNumber, convErr := strconv.Atoi(matches[len(matches)-1])
		if convErr != nil || pageNumber < 1 {
			continue
		}
		pageTexts[pageNumber] = textFromContentStream(string(content))
	}

	pages := make([]string, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, pageTexts[n])
	}
	return pages, pageCount, warnings, nil
}

// textFromContentStream reduces a decoded PDF content stream to the text
// inside its string literals. Literals separated by line-advancing
// operators (Td, TD, T*, ET, ') become separate lines; others join with a
// space.
func textFromContentStream(stream string) string {
	var out strings.Builder
	var literal strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(stream); i++ {
		c := stream[i]

		if depth == 0 {
			if c == '(' {
				depth = 1
				literal.Reset()
			}
			continue
		}

		if escaped {
			escaped = false
			switch c {
			case 'n':
				literal.WriteByte('\n')
			case 'r', 't':
				literal.WriteByte(' ')
			case 'b', 'f':
				// backspace and form feed carry no text
			case '0', '1', '2', '3', '4', '5', '6', '7':
				value := int(c - '0')
				for digits := 1; digits < 3 && i+1 < len(stream); digits++ {
					next := stream[i+1]
					if next < '0' || next > '7' {
						break
					}
					value = value*8 + int(next-'0')
					i++
				}
				if value >= 32 && value < 256 {
					literal.WriteByte(byte(value))
				}
			default:
				literal.WriteByte(c)
			}
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			literal.WriteByte(c)
		case ')':
			depth--
			if depth > 0 {
				literal.WriteByte(c)
				continue
			}
			out.WriteString(literal.String())
			if advancesLine(stream, i+1) {
				out.WriteByte('\n')
			} else {
				out.WriteByte(' ')
			}
		default:
			literal.WriteByte(c)
		}
	}

	return out.String()
}

// advancesLine scans the operator text between two string literals for a
// line-advancing text operator.
func advancesLine(stream string, from int) bool {
	end := strings.IndexByte(stream[from:], '(')
	var between string
	if end < 0 {
		between = stream[from:]
	} else {
		between = stream[from : from+end]
	}
	for _, op := range []string{"Td", "TD", "T*", "ET", "'"} {
		if strings.Contains(between, op) {
			return true
		}
	}
	return false
}
