package parsers

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.DocumentParser = (*DOCXParser)(nil)

// docNominalWords is the whole-document completeness expectation for
// word-processed files, which carry no page count.
const docNominalWords = 400

// DOCXParser handles word-processed documents.
type DOCXParser struct {
	logger arbor.ILogger
}

// NewDOCXParser creates the word-processed document parser.
func NewDOCXParser(logger arbor.ILogger) *DOCXParser {
	return &DOCXParser{logger: logger}
}

// Supports reports whether the document is a word-processed file.
func (p *DOCXParser) Supports(filename, mimeType string) bool {
	if strings.ToLower(filepath.Ext(filename)) == ".docx" {
		return true
	}
	return filename == "" && mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// SourceType returns the format identifier.
func (p *DOCXParser) SourceType() models.SourceType {
	return models.SourceTypeDOCX
}

// Parse extracts the document text two ways: the raw paragraph stream
// segmented by the shared heuristics, and a structured variant grouped by
// heading styles. The structured variant wins when it recovers strictly
// more sections.
func (p *DOCXParser) Parse(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error) {
	startTime := time.Now()

	container, err := openContainer(raw.Data)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "docx_container", "failed to open document container")
	}
	documentXML, err := containerFile(container, "word/document.xml")
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "docx_body", "document container has no body")
	}
	paragraphs, err := documentParagraphs(documentXML)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "docx_markup", "failed to parse document body")
	}

	if err := ctx.Err(); err != nil {
		return nil, resilience.NewCancelled("document parsing")
	}

	var lines []string
	for _, paragraph := range paragraphs {
		lines = append(lines, paragraph.text)
	}
	text := normalizeText(strings.Join(lines, "\n"))

	result := &parseResult{text: text}

	heuristic := segmentText(text, raw.Filename)
	structured := sectionsFromHeadings(paragraphs, raw.Filename)
	if len(structured) > len(heuristic) {
		result.sections = structured
	} else {
		result.sections = heuristic
	}

	return assembleDocument(raw, models.SourceTypeDOCX, result, docNominalWords, startTime), nil
}

// sectionsFromHeadings groups paragraphs under the heading-styled
// paragraphs (levels 1 through 6). Content before the first heading
// becomes a section with a synthesized title.
func sectionsFromHeadings(paragraphs []docParagraph, sourceDocument string) []models.DocumentSection {
	var sections []models.DocumentSection
	var title string
	var confidence float64
	var content []string
	started := false

	flush := func() {
		if !started {
			return
		}
		body := strings.TrimSpace(normalizeText(strings.Join(content, "\n")))
		if title == "" {
			title = synthesizeTitle(body)
			confidence = synthesizedConfidence
		}
		if title == "" && body == "" {
			title, confidence, content, started = "", 0, nil, false
			return
		}
		sections = append(sections, models.DocumentSection{
			Title:          title,
			Content:        body,
			SourceDocument: sourceDocument,
			Confidence:     confidence,
		})
		title, confidence, content, started = "", 0, nil, false
	}

	for _, paragraph := range paragraphs {
		text := strings.TrimSpace(paragraph.text)
		if paragraph.headingLevel() > 0 && text != "" {
			flush()
			title = text
			confidence = headingConfidence(text)
			started = true
			continue
		}
		if text == "" {
			if started {
				content = append(content, "")
			}
			continue
		}
		if !started {
			started = true
		}
		content = append(content, paragraph.text)
	}
	flush()

	return sections
}
