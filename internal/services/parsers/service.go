// -----------------------------------------------------------------------
// Parser Service - routes documents to format parsers and runs batch
// parsing over a bounded worker pool
// -----------------------------------------------------------------------

package parsers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.ParserService = (*Service)(nil)

// Service dispatches raw documents to the registered format parsers.
type Service struct {
	parsers        []interfaces.DocumentParser
	maxConcurrency int
	logger         arbor.ILogger
}

// NewService creates the parser service with all format parsers
// registered. The OCR service and degradation registry feed the PDF
// parser's fallback and may be nil.
func NewService(cfg *common.Config, ocrService interfaces.OCRService, degradation *resilience.Degradation, logger arbor.ILogger) *Service {
	maxConcurrency := cfg.Parser.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &Service{
		parsers: []interfaces.DocumentParser{
			NewPDFParser(cfg, ocrService, degradation, logger),
			NewDOCXParser(logger),
			NewPPTXParser(logger),
			NewTextParser(logger),
		},
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// ParseDocument routes one document to the matching format parser.
func (s *Service) ParseDocument(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error) {
	if raw == nil {
		return nil, resilience.New(resilience.CategoryValidation, "no_document", "document is required")
	}
	if len(raw.Data) == 0 {
		return nil, resilience.New(resilience.CategoryValidation, "empty_document",
			fmt.Sprintf("document %q has no content", raw.Filename))
	}

	parser := s.matchParser(raw)
	if parser == nil {
		return nil, resilience.New(resilience.CategoryValidation, "unsupported_format",
			fmt.Sprintf("no parser supports %q (%s)", raw.Filename, raw.MimeType))
	}

	doc, err := parser.Parse(ctx, raw)
	if err != nil {
		if _, ok := resilience.AsError(err); ok {
			return nil, err
		}
		return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "parse_failed",
			fmt.Sprintf("failed to parse %q", raw.Filename))
	}

	s.logger.Info().
		Str("filename", raw.Filename).
		Str("source_type", string(doc.SourceType)).
		Str("extraction_method", string(doc.ExtractionMethod)).
		Int("word_count", doc.WordCount).
		Int("sections", len(doc.Sections)).
		Int("warnings", len(doc.Warnings)).
		Msg("Document parsed")

	return doc, nil
}

// matchParser resolves the format parser for a document. Extension wins;
// the declared MIME type is only consulted when no parser claims the
// extension.
func (s *Service) matchParser(raw *models.RawDocument) interfaces.DocumentParser {
	for _, parser := range s.parsers {
		if parser.Supports(raw.Filename, "") {
			return parser
		}
	}
	mimeType := strings.TrimSpace(raw.MimeType)
	if mimeType == "" {
		return nil
	}
	for _, parser := range s.parsers {
		if parser.Supports("", mimeType) {
			return parser
		}
	}
	return nil
}

// ParseBatch parses a document set over a bounded worker pool. Failures
// stay per-document; the batch only errors when nothing succeeded.
// Output order follows input order regardless of completion order.
func (s *Service) ParseBatch(ctx context.Context, raws []*models.RawDocument) ([]*models.ProcessedDocument, *models.BatchSummary, error) {
	if len(raws) == 0 {
		return nil, nil, resilience.New(resilience.CategoryValidation, "no_documents", "at least one document is required")
	}

	type outcome struct {
		doc *models.ProcessedDocument
		err error
	}
	outcomes := make([]outcome, len(raws))

	workers := s.maxConcurrency
	if workers > len(raws) {
		workers = len(raws)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					outcomes[i] = outcome{err: resilience.NewCancelled("document parsing")}
					continue
				}
				doc, err := s.ParseDocument(ctx, raws[i])
				outcomes[i] = outcome{doc: doc, err: err}
			}
		}()
	}

feed:
	for i := range raws {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil, resilience.NewCancelled("batch parsing")
	}

	summary := &models.BatchSummary{}
	docs := make([]*models.ProcessedDocument, 0, len(raws))
	for i, result := range outcomes {
		if result.err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, batchError(raws[i], result.err))
			continue
		}
		summary.SuccessfullyProcessed++
		docs = append(docs, result.doc)
	}

	s.logger.Info().
		Int("processed", summary.SuccessfullyProcessed).
		Int("failed", summary.Failed).
		Msg("Batch parsing completed")

	if summary.SuccessfullyProcessed == 0 {
		return nil, summary, resilience.New(resilience.CategoryDocumentProcessing, "batch_failed", "no documents could be parsed")
	}
	return docs, summary, nil
}

func batchError(raw *models.RawDocument, err error) models.BatchError {
	code := "parse_failed"
	message := err.Error()
	if rerr, ok := resilience.AsError(err); ok {
		code = rerr.Code
		message = rerr.Message
	}
	return models.BatchError{
		Filename: raw.Filename,
		Code:     code,
		Message:  message,
	}
}
