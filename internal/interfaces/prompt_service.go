package interfaces

import (
	"github.com/ternarybob/aestimo/internal/models"
)

// PromptService manages the named analysis templates. The template table is
// a process-wide singleton with internal locking; registration normally
// happens once at startup.
type PromptService interface {
	// Register adds or replaces a template. Name is the registry key.
	Register(template *models.PromptTemplate) error

	// Get returns the template or a validation error when unknown.
	Get(name string) (*models.PromptTemplate, error)

	// Generate substitutes variables into the template and appends the
	// analysis-context lines to the system text. Missing required variables
	// fail with a validation error.
	Generate(name string, analysisCtx *models.AnalysisContext, vars map[string]string) (*models.GeneratedPrompt, error)

	// Workflow returns the standard analysis prompts in their fixed order:
	// company_profile, investment_metrics, market_claims, team_assessment.
	// The analyzer maps results by positional slot, so the order is part of
	// the contract.
	Workflow(analysisCtx *models.AnalysisContext, vars map[string]string) ([]*models.GeneratedPrompt, error)

	// List returns registered template names sorted ascending.
	List() []string
}
