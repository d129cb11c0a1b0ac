// -----------------------------------------------------------------------
// Slide Deck Parser - extracts slide text from presentation containers,
// one section per slide in slide-number order
// -----------------------------------------------------------------------

package parsers

import (
	"archive/zip"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.DocumentParser = (*PPTXParser)(nil)

// slideEntryRegex matches slide entries inside the presentation container.
var slideEntryRegex = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

const (
	// substantialSlideChars is the text length above which a slide counts
	// as carrying real content for the OCR suggestion.
	substantialSlideChars = 20

	// slideNominalWords is the completeness expectation per slide.
	slideNominalWords = 30
)

// PPTXParser handles presentation documents.
type PPTXParser struct {
	logger arbor.ILogger
}

// NewPPTXParser creates the slide-deck parser.
func NewPPTXParser(logger arbor.ILogger) *PPTXParser {
	return &PPTXParser{logger: logger}
}

// Supports reports whether the document is a presentation.
func (p *PPTXParser) Supports(filename, mimeType string) bool {
	if strings.ToLower(filepath.Ext(filename)) == ".pptx" {
		return true
	}
	return filename == "" && mimeType == "application/vnd.openxmlformats-officedocument.presentationml.presentation"
}

// SourceType returns the format identifier.
func (p *PPTXParser) SourceType() models.SourceType {
	return models.SourceTypePPTX
}

// Parse extracts the deck's text slide by slide. Each slide becomes one
// section; the first run is used as the title when it reads like one,
// otherwise a title is synthesized from the slide content.
func (p *PPTXParser) Parse(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error) {
	startTime := time.Now()

	container, err := openContainer(raw.Data)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "pptx_container", "failed to open presentation container")
	}

	slides := slideEntries(container)
	result := &parseResult{}
	if len(slides) == 0 {
		result.warnings = append(result.warnings, "presentation contains no slides")
		return assembleDocument(raw, models.SourceTypePPTX, result, slideNominalWords, startTime), nil
	}

	var slideTexts []string
	substantial := 0
	for i, entry := range slides {
		if err := ctx.Err(); err != nil {
			return nil, resilience.NewCancelled("presentation parsing")
		}

		slideXML, err := containerFile(container, entry.name)
		if err != nil {
			result.warnings = append(result.warnings, fmt.Sprintf("slide %d could not be read: %v", entry.number, err))
			continue
		}
		runs, err := slideRuns(slideXML)
		if err != nil {
			result.warnings = append(result.warnings, fmt.Sprintf("slide %d could not be parsed: %v", entry.number, err))
			continue
		}

		section := slideSection(runs, i+1, entry.number)
		result.sections = append(result.sections, section)

		slideText := normalizeText(strings.Join(runs, "\n"))
		if slideText != "" {
			slideTexts = append(slideTexts, slideText)
		}
		if utf8.RuneCountInString(slideText) > substantialSlideChars {
			substantial++
		}
	}

	result.text = normalizeText(strings.Join(slideTexts, "\n\n"))
	result.pageCount = len(slides)

	// Decks that are mostly imagery have little extractable text; flag
	// them for OCR when fewer than half the slides carry real content.
	if substantial*2 < len(slides) {
		result.ocrRequired = true
		result.warnings = append(result.warnings, "fewer than half of the slides contain substantial text; consider OCR on the source material")
	}

	return assembleDocument(raw, models.SourceTypePPTX, result, slideNominalWords, startTime), nil
}

type slideEntry struct {
	name   string
	number int
}

// slideEntries lists the deck's slides in slide-number order. Zip
// iteration order is not meaningful, the number embedded in the entry
// name is.
func slideEntries(container *zip.Reader) []slideEntry {
	var entries []slideEntry
	for _, file := range container.File {
		matches := slideEntryRegex.FindStringSubmatch(file.Name)
		if matches == nil {
			continue
		}
		number, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		entries = append(entries, slideEntry{name: file.Name, number: number})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].number < entries[j].number })
	return entries
}

// slideSection builds the section for one slide. The first non-empty run
// is the title iff it is short, has no sentence-terminal punctuation, and
// the slide has additional runs; otherwise the title is synthesized from
// the content.
func slideSection(runs []string, position, slideNumber int) models.DocumentSection {
	if len(runs) == 0 {
		return models.DocumentSection{
			Title:      fmt.Sprintf("Slide %d", slideNumber),
			PageNumber: position,
			Confidence: synthesizedConfidence,
		}
	}

	first := runs[0]
	rest := runs[1:]
	titleQualifies := utf8.RuneCountInString(first) <= maxHeadingLength &&
		!hasSentenceTerminal(first) &&
		len(rest) > 0

	if titleQualifies {
		return models.DocumentSection{
			Title:      first,
			Content:    normalizeText(strings.Join(rest, "\n")),
			PageNumber: position,
			Confidence: headingConfidence(first),
		}
	}

	content := normalizeText(strings.Join(runs, "\n"))
	return models.DocumentSection{
		Title:      synthesizeTitle(content),
		Content:    content,
		PageNumber: position,
		Confidence: synthesizedConfidence,
	}
}
