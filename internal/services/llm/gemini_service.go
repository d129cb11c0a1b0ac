package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var _ interfaces.LLMService = (*GeminiService)(nil)

// GeminiService implements the LLMService interface using the Google Gemini
// API. Structured analysis prompts run with native JSON schema enforcement.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
	model   string
}

// NewGeminiService creates a new Gemini LLM service instance.
//
// The service initialization includes:
//  1. Resolving the Gemini API key from environment, KV store, or config
//  2. Setting the default model name if not specified
//  3. Building the request rate limiter from configuration
//  4. Initializing the genai client against the Gemini API backend
//
// Parameters:
//   - geminiConfig: Gemini configuration with API key and model settings
//   - storage: Storage manager for KV-backed API key resolution, may be nil
//   - logger: Structured logger for service operations
//
// Returns:
//   - *GeminiService: Initialized service ready for use
//   - error: nil on success, error with details on failure
func NewGeminiService(geminiConfig *common.GeminiConfig, storage interfaces.StorageManager, logger arbor.ILogger) (*GeminiService, error) {
	ctx := context.Background()

	var kv interfaces.KeyValueStorage
	if storage != nil {
		kv = storage.KeyValueStorage()
	}
	apiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set via AESTIMO_GEMINI_API_KEY, the KV store, or gemini.api_key in config): %w", err)
	}

	model := geminiConfig.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		limiter: newRateLimiter(geminiConfig.RateLimit),
		model:   model,
	}

	logger.Info().
		Str("model", model).
		Float32("temperature", geminiConfig.Temperature).
		Int("max_output_tokens", geminiConfig.MaxOutputTokens).
		Str("rate_limit", geminiConfig.RateLimit).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// newRateLimiter builds a limiter spacing requests by the configured
// interval. An empty or zero interval disables limiting.
func newRateLimiter(interval string) *rate.Limiter {
	every := common.ParseDurationOr(interval, 0)
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Generate runs one completion against the Gemini API.
//
// System text is passed as the model's system instruction. When the
// generation config carries a response schema, the call requests
// schema-constrained JSON output, which Gemini enforces natively.
//
// Parameters:
//   - ctx: Context carrying the per-attempt timeout
//   - systemText: System instruction, may be empty
//   - userText: User prompt content
//   - config: Generation parameters; nil or zero fields use config defaults
//
// Returns:
//   - *interfaces.GenerateResult: Response text with finish metadata
//   - error: Taxonomy-classified error on failure
func (s *GeminiService) Generate(ctx context.Context, systemText, userText string, config *interfaces.GenerationConfig) (*interfaces.GenerateResult, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, resilience.New(resilience.CategoryValidation, "empty_prompt", "user text cannot be empty")
	}
	if config == nil {
		config = &interfaces.GenerationConfig{}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, classifyProviderError("gemini", err)
	}

	startTime := time.Now()
	s.logger.Debug().
		Str("model", s.model).
		Int("user_text_length", len(userText)).
		Bool("has_schema", len(config.ResponseSchema) > 0).
		Msg("Starting Gemini generation")

	genConfig := s.buildGenerateConfig(systemText, config)
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(userText)},
	}}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, genConfig)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", s.model).
			Dur("duration", time.Since(startTime)).
			Msg("Gemini generation failed")
		return nil, classifyProviderError("gemini", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, resilience.New(resilience.CategoryAIService, "empty_response", "Gemini returned no candidates")
	}

	result := buildGeminiResult(resp, s.model)

	s.logger.Debug().
		Str("model", s.model).
		Str("finish_reason", string(result.FinishReason)).
		Int("response_length", len(result.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini generation completed")

	return result, nil
}

// buildGenerateConfig merges per-call generation parameters with the
// configured defaults.
func (s *GeminiService) buildGenerateConfig(systemText string, config *interfaces.GenerationConfig) *genai.GenerateContentConfig {
	temp := config.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}
	topP := config.TopP
	if topP <= 0 {
		topP = s.config.TopP
	}
	topK := config.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}
	maxTokens := config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxOutputTokens
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if topP > 0 {
		genConfig.TopP = genai.Ptr(topP)
	}
	if topK > 0 {
		genConfig.TopK = genai.Ptr(float32(topK))
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}

	if systemText != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	// When a schema is provided, Gemini enforces JSON output matching it.
	if len(config.ResponseSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(config.ResponseSchema)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to convert output schema, continuing without it")
		} else if genaiSchema != nil {
			genConfig.ResponseMIMEType = "application/json"
			genConfig.ResponseSchema = genaiSchema
		}
	}

	for _, setting := range config.SafetySettings {
		genConfig.SafetySettings = append(genConfig.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(setting.Category),
			Threshold: genai.HarmBlockThreshold(setting.Threshold),
		})
	}

	return genConfig
}

// buildGeminiResult maps a raw API response onto the provider-neutral
// result shape.
func buildGeminiResult(resp *genai.GenerateContentResponse, model string) *interfaces.GenerateResult {
	candidate := resp.Candidates[0]

	result := &interfaces.GenerateResult{
		Text:         resp.Text(),
		FinishReason: mapGeminiFinishReason(candidate.FinishReason),
		Model:        model,
	}

	for _, rating := range candidate.SafetyRatings {
		if rating == nil {
			continue
		}
		result.SafetyRatings = append(result.SafetyRatings, interfaces.SafetyRating{
			Category:    string(rating.Category),
			Probability: string(rating.Probability),
			Blocked:     rating.Blocked,
		})
	}

	if candidate.CitationMetadata != nil {
		for _, citation := range candidate.CitationMetadata.Citations {
			if citation == nil {
				continue
			}
			if citation.URI != "" {
				result.Citations = append(result.Citations, citation.URI)
			} else if citation.Title != "" {
				result.Citations = append(result.Citations, citation.Title)
			}
		}
	}

	return result
}

// mapGeminiFinishReason converts the provider finish reason to the neutral
// enumeration. Safety-adjacent blocks all map to SAFETY.
func mapGeminiFinishReason(reason genai.FinishReason) interfaces.FinishReason {
	switch reason {
	case genai.FinishReasonStop, "":
		return interfaces.FinishStop
	case genai.FinishReasonMaxTokens:
		return interfaces.FinishMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return interfaces.FinishSafety
	case genai.FinishReasonRecitation:
		return interfaces.FinishRecitation
	default:
		return interfaces.FinishOther
	}
}

// Provider returns the backend identifier.
func (s *GeminiService) Provider() string {
	return "gemini"
}

// Model returns the configured model name.
func (s *GeminiService) Model() string {
	return s.model
}

// HealthCheck verifies the Gemini service is operational.
//
// The check performs a minimal generation probe with a short timeout and
// validates that a non-empty response comes back.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.Generate(probeCtx, "", "ping", &interfaces.GenerationConfig{MaxOutputTokens: 16})
	if err != nil {
		return fmt.Errorf("Gemini health probe failed: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return fmt.Errorf("Gemini health probe returned empty response")
	}

	s.logger.Debug().Str("model", s.model).Msg("Gemini LLM service health check passed")
	return nil
}

// Close releases resources. The genai client requires no explicit cleanup
// beyond clearing the reference.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}
