// -----------------------------------------------------------------------
// OCR Service - vision-model text extraction for scanned documents,
// used as the fallback when a document's native text layer is unusable
// -----------------------------------------------------------------------

package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var _ interfaces.OCRService = (*Service)(nil)

// maxTranscriptionTokens bounds the response size for a full-document
// transcription pass.
const maxTranscriptionTokens = 8192

// Service implements OCRService against the Gemini API. Document bytes go
// to the model as an inline multimodal part and the transcription comes
// back as schema-constrained JSON.
type Service struct {
	config  *common.OCRConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
	model   string
}

// NewService creates the vision OCR service. The API key resolution order
// matches the Gemini LLM service: environment, KV store, then config. The
// vision model defaults to the analysis model when no override is set.
func NewService(cfg *common.Config, storage interfaces.StorageManager, logger arbor.ILogger) (*Service, error) {
	ctx := context.Background()

	var kv interfaces.KeyValueStorage
	if storage != nil {
		kv = storage.KeyValueStorage()
	}
	apiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", cfg.Gemini.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required for OCR (set via AESTIMO_GEMINI_API_KEY, the KV store, or gemini.api_key in config): %w", err)
	}

	model := cfg.OCR.Model
	if model == "" {
		model = cfg.Gemini.Model
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client for OCR: %w", err)
	}

	service := &Service{
		config:  &cfg.OCR,
		logger:  logger,
		client:  client,
		limiter: buildLimiter(cfg.Gemini.RateLimit),
		model:   model,
	}

	logger.Info().
		Str("model", model).
		Float64("confidence_threshold", cfg.OCR.ConfidenceThreshold).
		Strs("language_hints", cfg.OCR.LanguageHints).
		Msg("OCR service initialized successfully")

	return service, nil
}

// buildLimiter spaces vision requests by the configured Gemini interval so
// OCR and analysis calls share the same quota pacing.
func buildLimiter(interval string) *rate.Limiter {
	every := common.ParseDurationOr(interval, 0)
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// DetectDocument runs the dense document strategy: the model transcribes
// every page into positioned text blocks with confidences. Suited to
// multi-column layouts, tables, and full scanned pages.
func (s *Service) DetectDocument(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	return s.detect(ctx, data, languageHints, documentDetection)
}

// DetectText runs the sparse text strategy: a plain transcription with an
// overall confidence, no page or block structure. Used as the fallback
// when document detection yields nothing.
func (s *Service) DetectText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	return s.detect(ctx, data, languageHints, textDetection)
}

// ExtractText applies the two-strategy fallback: document detection first,
// then sparse text detection when the first pass errors or returns no
// text. A warning is appended when the winning result's confidence falls
// below the configured threshold.
func (s *Service) ExtractText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error) {
	docResult, docErr := s.DetectDocument(ctx, data, languageHints)
	if docErr == nil && docResult.HasText() {
		return s.applyConfidenceWarning(docResult), nil
	}
	if ctx.Err() != nil {
		if docErr != nil {
			return nil, docErr
		}
		return nil, resilience.NewCancelled("OCR extraction")
	}

	if docErr != nil {
		s.logger.Warn().Err(docErr).Msg("Document detection failed, falling back to sparse text detection")
	} else {
		s.logger.Debug().Msg("Document detection returned no text, falling back to sparse text detection")
	}

	textResult, textErr := s.DetectText(ctx, data, languageHints)
	if textErr != nil {
		return nil, textErr
	}

	if docErr != nil {
		textResult.Warnings = append(textResult.Warnings, "document detection failed; result comes from sparse text detection")
	} else if !textResult.HasText() {
		textResult.Warnings = append(textResult.Warnings, "no text detected by either OCR strategy")
	}
	return s.applyConfidenceWarning(textResult), nil
}

// detectionMode selects the prompt, response schema, and decoder for one
// detection strategy.
type detectionMode int

const (
	documentDetection detectionMode = iota
	textDetection
)

func (m detectionMode) String() string {
	if m == documentDetection {
		return "document"
	}
	return "text"
}

func (s *Service) detect(ctx context.Context, data []byte, languageHints []string, mode detectionMode) (*models.OCRResult, error) {
	if len(data) == 0 {
		return nil, resilience.New(resilience.CategoryValidation, "empty_document", "document bytes are required for OCR")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, classifyVisionError(err)
	}

	hints := languageHints
	if len(hints) == 0 {
		hints = s.config.LanguageHints
	}

	var prompt string
	var schema *genai.Schema
	if mode == documentDetection {
		prompt = documentPrompt(hints)
		schema = documentSchema
	} else {
		prompt = textPrompt(hints)
		schema = textSchema
	}

	mimeType := sniffMIMEType(data)
	startTime := time.Now()
	s.logger.Debug().
		Str("model", s.model).
		Str("mode", mode.String()).
		Str("mime_type", mimeType).
		Int("payload_bytes", len(data)).
		Msg("Starting OCR detection")

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(prompt),
		},
	}}
	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		MaxOutputTokens:  maxTranscriptionTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, genConfig)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("mode", mode.String()).
			Dur("duration", time.Since(startTime)).
			Msg("OCR detection failed")
		return nil, classifyVisionError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, resilience.New(resilience.CategoryAIService, "empty_response", "vision model returned no candidates")
	}

	var result *models.OCRResult
	if mode == documentDetection {
		result, err = decodeDocumentResult(resp.Text())
	} else {
		result, err = decodeTextResult(resp.Text())
	}
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryAIService, resilience.CodeExtractionFailed,
			fmt.Sprintf("%s detection response could not be decoded", mode))
	}

	s.logger.Debug().
		Str("mode", mode.String()).
		Int("pages", len(result.Pages)).
		Int("text_length", len(result.Text)).
		Float64("confidence", result.Confidence).
		Dur("duration", time.Since(startTime)).
		Msg("OCR detection completed")

	return result, nil
}

// applyConfidenceWarning appends the low-confidence warning when the
// result falls below the configured threshold.
func (s *Service) applyConfidenceWarning(result *models.OCRResult) *models.OCRResult {
	if result.HasText() && result.Confidence < s.config.ConfidenceThreshold {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"OCR confidence %.2f is below the %.2f threshold; transcription may be unreliable",
			result.Confidence, s.config.ConfidenceThreshold))
	}
	return result
}

// HealthCheck verifies the vision backend is reachable with a minimal
// text-only probe against the configured model.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText("ping")},
	}}
	_, err := s.client.Models.GenerateContent(probeCtx, s.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 16,
	})
	if err != nil {
		return fmt.Errorf("OCR health probe failed: %w", err)
	}

	s.logger.Debug().Str("model", s.model).Msg("OCR service health check passed")
	return nil
}

// documentPrompt is the instruction for the dense document strategy.
func documentPrompt(hints []string) string {
	var b strings.Builder
	b.WriteString("Transcribe every piece of text in this document.\n")
	b.WriteString("Return one entry per page, numbered from 1. For each page list the text blocks in reading order ")
	b.WriteString("with a confidence between 0 and 1 and a bounding box (x and y measured from the top-left corner of the page, with w and h in the same units).\n")
	b.WriteString("Keep headings and titles as their own blocks. Do not summarize, translate, or correct the text.")
	appendHints(&b, hints)
	return b.String()
}

// textPrompt is the instruction for the sparse text strategy.
func textPrompt(hints []string) string {
	var b strings.Builder
	b.WriteString("Extract any text visible in this image or document.\n")
	b.WriteString("Return the full transcription, an overall confidence between 0 and 1, and the dominant language as an ISO 639-1 code. ")
	b.WriteString("If there is no visible text, return an empty transcription.")
	appendHints(&b, hints)
	return b.String()
}

func appendHints(b *strings.Builder, hints []string) {
	if len(hints) == 0 {
		return
	}
	b.WriteString("\nExpected languages: ")
	b.WriteString(strings.Join(hints, ", "))
	b.WriteString(".")
}

// sniffMIMEType determines the multimodal part's content type from the
// payload's magic bytes. Unrecognized payloads go through as PDF, the
// dominant scanned-document container.
func sniffMIMEType(data []byte) string {
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/gif", "image/webp":
		return mimeType
	}
	return "application/pdf"
}

// classifyVisionError maps a provider failure onto the error taxonomy and
// tags it with the vision provider.
func classifyVisionError(err error) error {
	if err == nil {
		return nil
	}
	return resilience.Classify(err).WithDetail("provider", "gemini-vision")
}

// documentSchema constrains the document detection response to the page
// and block hierarchy the decoder expects.
var documentSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"pages"},
	Properties: map[string]*genai.Schema{
		"language": {Type: genai.TypeString, Description: "Dominant language as an ISO 639-1 code"},
		"pages": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:     genai.TypeObject,
				Required: []string{"page_number", "blocks"},
				Properties: map[string]*genai.Schema{
					"page_number": {Type: genai.TypeInteger, Description: "1-based page number"},
					"confidence":  {Type: genai.TypeNumber},
					"blocks": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type:     genai.TypeObject,
							Required: []string{"text"},
							Properties: map[string]*genai.Schema{
								"text":       {Type: genai.TypeString},
								"confidence": {Type: genai.TypeNumber},
								"bounding_box": {
									Type:     genai.TypeObject,
									Required: []string{"x", "y", "w", "h"},
									Properties: map[string]*genai.Schema{
										"x": {Type: genai.TypeNumber},
										"y": {Type: genai.TypeNumber},
										"w": {Type: genai.TypeNumber},
										"h": {Type: genai.TypeNumber},
									},
								},
							},
						},
					},
				},
			},
		},
	},
}

// textSchema constrains the sparse text detection response.
var textSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"text"},
	Properties: map[string]*genai.Schema{
		"text":       {Type: genai.TypeString},
		"confidence": {Type: genai.TypeNumber},
		"language":   {Type: genai.TypeString, Description: "ISO 639-1 code"},
	},
}
