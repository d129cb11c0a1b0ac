// -----------------------------------------------------------------------
// Document Parser Interfaces - Format-specific bytes to structured text
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// DocumentParser converts one document format into a ProcessedDocument.
// Implementations exist per source type (pdf, docx, pptx, text); all share
// the base text-normalization and section heuristics.
type DocumentParser interface {
	// Parse extracts text and sections from raw document bytes.
	// Partial extraction (empty text but valid structure) returns warnings
	// on the document rather than an error. Format failures are wrapped as
	// non-retryable document_processing errors.
	Parse(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error)

	// Supports reports whether this parser handles the given filename and
	// declared MIME type. Extension wins over MIME when they disagree.
	Supports(filename, mimeType string) bool

	// SourceType returns the format this parser produces.
	SourceType() models.SourceType
}

// ParserService dispatches documents to the registered format parsers and
// coordinates batch parsing with a bounded worker pool.
type ParserService interface {
	// ParseDocument routes a single document to the matching parser.
	// Unknown formats fail with a validation error.
	ParseDocument(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error)

	// ParseBatch parses a document set concurrently. Per-document failures
	// never abort the batch; the summary reports them. The returned error is
	// non-nil only when zero documents succeeded.
	ParseBatch(ctx context.Context, raws []*models.RawDocument) ([]*models.ProcessedDocument, *models.BatchSummary, error)
}
