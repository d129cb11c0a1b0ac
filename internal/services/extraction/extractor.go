package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/arbor"
)

var _ interfaces.EntityExtractor = (*Extractor)(nil)

// contextRadius is how many bytes of surrounding text a snippet keeps on
// each side of a match, widened to rune boundaries.
const contextRadius = 60

// Extractor pulls investment metrics out of document text with the
// deterministic regex catalog. One entity per metric per document, first
// match wins; range validation happens later in the reconciler.
type Extractor struct {
	catalog []metricPattern
	logger  arbor.ILogger
}

// NewExtractor compiles the catalog and returns the extractor.
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		catalog: newCatalog(),
		logger:  logger,
	}
}

// Extract runs every catalog pattern over the document text.
func (e *Extractor) Extract(doc *models.ProcessedDocument) []models.ExtractedEntity {
	if doc == nil || strings.TrimSpace(doc.ExtractedText) == "" {
		return nil
	}

	var entities []models.ExtractedEntity
	for _, pattern := range e.catalog {
		loc := pattern.matcher.FindStringSubmatchIndex(doc.ExtractedText)
		if loc == nil {
			continue
		}

		value, ok := pattern.parse(submatches(doc.ExtractedText, loc))
		if !ok {
			continue
		}

		entities = append(entities, models.ExtractedEntity{
			Type:             pattern.entityType,
			Name:             pattern.name,
			Value:            value,
			Unit:             pattern.unit,
			Confidence:       pattern.confidence,
			SourceDocumentID: doc.ID,
			Context:          snippet(doc.ExtractedText, loc[0], loc[1]),
			ExtractionMethod: models.EntityMethodPattern,
		})
	}

	e.logger.Debug().
		Str("document_id", doc.ID).
		Int("entities", len(entities)).
		Msg("Pattern extraction completed")

	return entities
}

// submatches turns a FindStringSubmatchIndex result into group strings,
// empty where a group did not participate.
func submatches(text string, loc []int) []string {
	match := make([]string, 0, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] < 0 {
			match = append(match, "")
			continue
		}
		match = append(match, text[loc[i]:loc[i+1]])
	}
	return match
}

// snippet returns the text surrounding a match, clamped to the document
// and widened outward to rune boundaries.
func snippet(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}

	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}

	return strings.TrimSpace(strings.ReplaceAll(text[from:to], "\n", " "))
}
