// -----------------------------------------------------------------------
// Prompt Service - Named analysis templates with variable substitution
// -----------------------------------------------------------------------

package prompts

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

// Compile-time interface check
var _ interfaces.PromptService = (*Service)(nil)

const (
	defaultTemperature float32 = 0.1
	defaultMaxTokens           = 2000
)

// workflowOrder is the fixed prompt order of the analysis workflow. The
// analyzer maps responses by positional slot, so this order is a contract.
var workflowOrder = []string{
	TemplateCompanyProfile,
	TemplateInvestmentMetrics,
	TemplateMarketClaims,
	TemplateTeamAssessment,
}

// Service holds the template table. Registration happens at startup; reads
// dominate afterwards.
type Service struct {
	mu        sync.RWMutex
	templates map[string]*models.PromptTemplate
	logger    arbor.ILogger
}

// NewService creates a prompt service with the built-in analysis templates
// registered.
func NewService(logger arbor.ILogger) *Service {
	s := &Service{
		templates: make(map[string]*models.PromptTemplate),
		logger:    logger,
	}

	for _, tmpl := range builtinTemplates() {
		if err := s.Register(tmpl); err != nil {
			logger.Warn().Err(err).Str("prompt", tmpl.Name).Msg("Failed to register built-in template")
		}
	}

	return s
}

// Register adds or replaces a template. Missing temperature and max token
// values fall back to the analysis defaults.
func (s *Service) Register(template *models.PromptTemplate) error {
	if template == nil || strings.TrimSpace(template.Name) == "" {
		return resilience.New(resilience.CategoryValidation, "invalid_template", "template requires a name")
	}
	if strings.TrimSpace(template.UserTemplate) == "" {
		return resilience.New(resilience.CategoryValidation, "invalid_template",
			fmt.Sprintf("template %s requires user text", template.Name))
	}

	registered := *template
	if registered.Temperature == 0 {
		registered.Temperature = defaultTemperature
	}
	if registered.MaxTokens == 0 {
		registered.MaxTokens = defaultMaxTokens
	}

	s.mu.Lock()
	s.templates[registered.Name] = &registered
	s.mu.Unlock()

	return nil
}

// Get returns the template or a validation error when unknown.
func (s *Service) Get(name string) (*models.PromptTemplate, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	s.mu.RUnlock()

	if !ok {
		return nil, resilience.New(resilience.CategoryValidation, "unknown_template",
			fmt.Sprintf("prompt template %q is not registered", name))
	}

	copied := *tmpl
	return &copied, nil
}

// Generate substitutes variables into the template and enriches the system
// text with the analysis context. Every {key} occurrence in the user template
// is replaced; a required variable without a value fails.
func (s *Service) Generate(name string, analysisCtx *models.AnalysisContext, vars map[string]string) (*models.GeneratedPrompt, error) {
	tmpl, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	for _, key := range tmpl.RequiredVars {
		if _, ok := vars[key]; !ok {
			return nil, resilience.New(resilience.CategoryValidation, "missing_prompt_variable",
				fmt.Sprintf("prompt %s requires variable %q", name, key))
		}
	}

	userText := tmpl.UserTemplate
	for key, value := range vars {
		userText = strings.ReplaceAll(userText, "{"+key+"}", value)
	}

	return &models.GeneratedPrompt{
		Name:         tmpl.Name,
		SystemText:   enrichSystemText(tmpl.SystemText, tmpl.Name, analysisCtx),
		UserText:     userText,
		OutputSchema: tmpl.OutputSchema,
		Temperature:  tmpl.Temperature,
		MaxTokens:    tmpl.MaxTokens,
	}, nil
}

// Workflow returns the four standard analysis prompts in their fixed order.
func (s *Service) Workflow(analysisCtx *models.AnalysisContext, vars map[string]string) ([]*models.GeneratedPrompt, error) {
	prompts := make([]*models.GeneratedPrompt, 0, len(workflowOrder))
	for _, name := range workflowOrder {
		prompt, err := s.Generate(name, analysisCtx, vars)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, prompt)
	}
	return prompts, nil
}

// List returns registered template names sorted ascending.
func (s *Service) List() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// enrichSystemText appends context lines to the system instruction when the
// analysis context carries them.
func enrichSystemText(systemText, templateName string, analysisCtx *models.AnalysisContext) string {
	if analysisCtx == nil {
		return systemText
	}

	var lines []string
	if analysisCtx.CompanyName != "" {
		lines = append(lines, "Company being analyzed: "+analysisCtx.CompanyName)
	}
	if analysisCtx.Sector != "" {
		lines = append(lines, "Sector: "+analysisCtx.Sector)
	}
	if analysisCtx.Stage != "" {
		lines = append(lines, "Funding stage: "+string(analysisCtx.Stage))
	}
	if instructions := analysisCtx.PromptInstructions[templateName]; instructions != "" {
		lines = append(lines, "Additional instructions: "+instructions)
	}

	if len(lines) == 0 {
		return systemText
	}
	return systemText + "\n\n" + strings.Join(lines, "\n")
}
