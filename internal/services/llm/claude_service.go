package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

var _ interfaces.LLMService = (*ClaudeService)(nil)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. Claude has no native response-schema enforcement, so schemas
// are embedded into the system instruction instead.
type ClaudeService struct {
	config      *common.ClaudeConfig
	logger      arbor.ILogger
	client      anthropic.Client
	limiter     *rate.Limiter
	model       string
	initialized bool
}

// NewClaudeService creates a new Claude LLM service instance.
//
// The service initialization includes:
//  1. Resolving the Anthropic API key from environment, KV store, or config
//  2. Setting the default model name if not specified
//  3. Building the request rate limiter from configuration
//  4. Initializing the Claude client
//
// Parameters:
//   - claudeConfig: Claude configuration with API key and model settings
//   - storage: Storage manager for KV-backed API key resolution, may be nil
//   - logger: Structured logger for service operations
//
// Returns:
//   - *ClaudeService: Initialized service ready for use
//   - error: nil on success, error with details on failure
func NewClaudeService(claudeConfig *common.ClaudeConfig, storage interfaces.StorageManager, logger arbor.ILogger) (*ClaudeService, error) {
	ctx := context.Background()

	var kv interfaces.KeyValueStorage
	if storage != nil {
		kv = storage.KeyValueStorage()
	}
	apiKey, err := common.ResolveAPIKey(ctx, kv, "anthropic_api_key", claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY, AESTIMO_CLAUDE_API_KEY, the KV store, or claude.api_key in config): %w", err)
	}

	model := claudeConfig.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	service := &ClaudeService{
		config:      claudeConfig,
		logger:      logger,
		client:      client,
		limiter:     newRateLimiter(claudeConfig.RateLimit),
		model:       model,
		initialized: true,
	}

	logger.Info().
		Str("model", model).
		Float32("temperature", claudeConfig.Temperature).
		Int("max_tokens", claudeConfig.MaxTokens).
		Str("rate_limit", claudeConfig.RateLimit).
		Msg("Claude LLM service initialized successfully")

	return service, nil
}

// Generate runs one completion against the Claude API.
//
// When the generation config carries a response schema, the schema is
// appended to the system instruction as a JSON contract, since the API
// offers no structured-output mode.
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
func (s *ClaudeService) Generate(ctx context.Context, systemText, userText string, config *interfaces.GenerationConfig) (*interfaces.GenerateResult, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, resilience.New(resilience.CategoryValidation, "empty_prompt", "user text cannot be empty")
	}
	if config == nil {
		config = &interfaces.GenerationConfig{}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, classifyProviderError("anthropic", err)
	}

	startTime := time.Now()
	s.logger.Debug().
		Str("model", s.model).
		Int("user_text_length", len(userText)).
		Bool("has_schema", len(config.ResponseSchema) > 0).
		Msg("Starting Claude generation")

	params := s.buildMessageParams(systemText, userText, config)

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", s.model).
			Dur("duration", time.Since(startTime)).
			Msg("Claude generation failed")
		return nil, classifyProviderError("anthropic", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result := &interfaces.GenerateResult{
		Text:         text.String(),
		FinishReason: mapClaudeStopReason(resp.StopReason),
		Model:        string(resp.Model),
	}

	s.logger.Debug().
		Str("model", s.model).
		Str("finish_reason", string(result.FinishReason)).
		Int("response_length", len(result.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude generation completed")

	return result, nil
}

// buildMessageParams merges per-call generation parameters with the
// configured defaults.
func (s *ClaudeService) buildMessageParams(systemText, userText string, config *interfaces.GenerationConfig) anthropic.MessageNewParams {
	maxTokens := config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userText)),
		},
	}

	temp := config.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if config.TopP > 0 {
		params.TopP = anthropic.Float(float64(config.TopP))
	}
	if config.TopK > 0 {
		params.TopK = anthropic.Int(int64(config.TopK))
	}

	system := systemText
	if len(config.ResponseSchema) > 0 {
		system = appendSchemaInstruction(system, config.ResponseSchema)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	return params
}

// mapClaudeStopReason converts the provider stop reason to the neutral
// enumeration.
func mapClaudeStopReason(reason anthropic.StopReason) interfaces.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, "":
		return interfaces.FinishStop
	case anthropic.StopReasonMaxTokens:
		return interfaces.FinishMaxTokens
	case anthropic.StopReasonRefusal:
		return interfaces.FinishSafety
	default:
		return interfaces.FinishOther
	}
}

// Provider returns the backend identifier.
func (s *ClaudeService) Provider() string {
	return "anthropic"
}

// Model returns the configured model name.
func (s *ClaudeService) Model() string {
	return s.model
}

// HealthCheck verifies the Claude service is operational.
//
// The check performs a minimal generation probe with a short timeout and
// validates that a non-empty response comes back.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if !s.initialized {
		return fmt.Errorf("Claude client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.Generate(probeCtx, "", "ping", &interfaces.GenerationConfig{MaxOutputTokens: 16})
	if err != nil {
		return fmt.Errorf("Claude health probe failed: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return fmt.Errorf("Claude health probe returned empty response")
	}

	s.logger.Debug().Str("model", s.model).Msg("Claude LLM service health check passed")
	return nil
}

// Close releases resources. The Claude client requires no explicit cleanup.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	s.client = anthropic.Client{}
	s.initialized = false
	return nil
}
