package llm

import (
	"strings"

	"github.com/ternarybob/aestimo/internal/common"
)

// DetectProvider determines which backend serves a model name. Explicit
// prefixes like "claude/..." or "gemini/..." win; bare model names are
// matched on their family prefix; anything else falls back to the
// configured default.
func DetectProvider(model string, fallback common.LLMProvider) common.LLMProvider {
	normalized := strings.ToLower(strings.TrimSpace(model))

	switch {
	case strings.HasPrefix(normalized, "claude/"), strings.HasPrefix(normalized, "anthropic/"):
		return common.LLMProviderClaude
	case strings.HasPrefix(normalized, "gemini/"), strings.HasPrefix(normalized, "google/"):
		return common.LLMProviderGemini
	case strings.HasPrefix(normalized, "claude-"):
		return common.LLMProviderClaude
	case strings.HasPrefix(normalized, "gemini-"):
		return common.LLMProviderGemini
	}

	if fallback == "" {
		return common.LLMProviderGemini
	}
	return fallback
}

// NormalizeModel strips any provider prefix from a model name, so
// "claude/claude-haiku-3-5" becomes "claude-haiku-3-5".
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}
