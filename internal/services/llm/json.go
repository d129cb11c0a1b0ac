package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// markdownFenceRegex strips ```json ... ``` fences models sometimes wrap
// around structured output despite instructions.
var markdownFenceRegex = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json|JSON)?\s*\n?(.*?)\n?\s*` + "```" + `\s*$`)

// cleanResponseText trims whitespace and removes a surrounding markdown
// code fence from a model response.
func cleanResponseText(response string) string {
	trimmed := strings.TrimSpace(response)
	if matches := markdownFenceRegex.FindStringSubmatch(trimmed); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	return trimmed
}

// unmarshalLenient parses JSON strictly first, then once more after running
// the payload through jsonrepair. It reports whether repair was needed so
// callers can record a warning.
func unmarshalLenient(text string, v interface{}) (bool, error) {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return false, nil
	}

	repaired, err := jsonrepair.RepairJSON(text)
	if err != nil {
		return false, fmt.Errorf("response is not valid JSON and could not be repaired: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return false, fmt.Errorf("repaired response still failed to parse: %w", err)
	}
	return true, nil
}
