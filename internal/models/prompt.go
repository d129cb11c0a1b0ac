package models

// PromptTemplate describes a named analysis prompt. UserTemplate may contain
// {key} placeholders that are substituted at generation time; every key in
// RequiredVars must be supplied or generation fails.
type PromptTemplate struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	SystemText   string                 `json:"system_text"`
	UserTemplate string                 `json:"user_template"`
	OutputSchema map[string]interface{} `json:"output_schema,omitempty"`
	RequiredVars []string               `json:"required_vars,omitempty"`
	Temperature  float32                `json:"temperature"`
	MaxTokens    int                    `json:"max_tokens"`
}

// GeneratedPrompt is a template after variable substitution and context
// enrichment, ready to hand to the LLM service.
type GeneratedPrompt struct {
	Name         string                 `json:"name"`
	SystemText   string                 `json:"system_text"`
	UserText     string                 `json:"user_text"`
	OutputSchema map[string]interface{} `json:"output_schema,omitempty"`
	Temperature  float32                `json:"temperature"`
	MaxTokens    int                    `json:"max_tokens"`
}
