package interfaces

import (
	"context"
)

// FinishReason reports why the model stopped generating.
type FinishReason string

const (
	FinishStop       FinishReason = "STOP"
	FinishMaxTokens  FinishReason = "MAX_TOKENS"
	FinishSafety     FinishReason = "SAFETY"
	FinishRecitation FinishReason = "RECITATION"
	FinishOther      FinishReason = "OTHER"
)

// GenerationConfig controls a single LLM call.
type GenerationConfig struct {
	// MaxOutputTokens caps the response length. Zero uses the provider default.
	MaxOutputTokens int

	// Temperature controls sampling randomness. Analysis prompts run low
	// (0.1) so repeated runs stay comparable.
	Temperature float32

	// TopP and TopK tune nucleus/top-k sampling. Zero values use defaults.
	TopP float32
	TopK int

	// ResponseSchema, when set, requests schema-constrained JSON output.
	// Providers without native schema support embed it in the instructions.
	ResponseSchema map[string]interface{}

	// SafetySettings adjust provider content-safety thresholds. Providers
	// that expose no safety controls ignore them.
	SafetySettings []SafetySetting
}

// SafetySetting overrides one provider safety category threshold.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// SafetyRating is one category score from the provider's safety screen.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked"`
}

// GenerateResult is the raw outcome of one LLM call before any JSON
// parsing or response mapping.
type GenerateResult struct {
	Text          string
	FinishReason  FinishReason
	SafetyRatings []SafetyRating
	Citations     []string
	Model         string
}

// LLMService defines the language-model capability the analyzer consumes.
// Implementations may use Gemini or Anthropic backends; the analyzer treats
// them identically.
type LLMService interface {
	// Generate runs one completion with the given system and user text.
	// Failures are classified into the error taxonomy: quota errors as
	// retryable rate_limit, transport errors as retryable network, auth
	// errors as non-retryable authentication.
	//
	// Parameters:
	//   - ctx: Context carrying the per-attempt timeout
	//   - systemText: System instruction prepended to the conversation
	//   - userText: User prompt content
	//   - config: Generation parameters for this call
	//
	// Returns:
	//   - *GenerateResult: Response text with finish metadata
	//   - error: Taxonomy error on failure
	Generate(ctx context.Context, systemText, userText string, config *GenerationConfig) (*GenerateResult, error)

	// Provider returns the backend identifier ("gemini", "anthropic").
	Provider() string

	// Model returns the configured model name.
	Model() string

	// HealthCheck verifies the service can reach its backend. Called during
	// startup and by the health monitor to update the degradation registry.
	HealthCheck(ctx context.Context) error

	// Close releases client resources.
	Close() error
}
