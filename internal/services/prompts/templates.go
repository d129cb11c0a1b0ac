package prompts

import (
	"github.com/ternarybob/aestimo/internal/models"
)

// Built-in template names
const (
	TemplateCompanyProfile    = "company_profile"
	TemplateInvestmentMetrics = "investment_metrics"
	TemplateMarketClaims      = "market_claims"
	TemplateTeamAssessment    = "team_assessment"
)

// builtinTemplates returns the standard analysis templates. Each output
// schema is a JSON-Schema subset the LLM providers can enforce natively.
func builtinTemplates() []*models.PromptTemplate {
	return []*models.PromptTemplate{
		{
			Name:        TemplateCompanyProfile,
			Description: "Extracts the company identity block from deal documents",
			SystemText: `You are an investment analyst extracting structured company information from deal documents.
Answer only from the provided documents. Never invent values; omit fields the documents do not support.
Respond with JSON only, no markdown fences.`,
			UserTemplate: `Extract the company profile from the following documents.

Rules:
- name: the legal or trading name of the company
- one_liner: a single sentence describing what the company does
- sector: the primary industry sector (e.g. "saas", "fintech", "healthtech", "marketplace")
- stage: one of pre_seed, seed, series_a, series_b, series_c, growth, ipo
- founded_year: four digit year the company was founded
- location: headquarters city and country
- website: company website if stated

Documents:
{documents}`,
			OutputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":         map[string]interface{}{"type": "string"},
					"one_liner":    map[string]interface{}{"type": "string"},
					"sector":       map[string]interface{}{"type": "string"},
					"stage":        map[string]interface{}{"type": "string"},
					"founded_year": map[string]interface{}{"type": "integer"},
					"location":     map[string]interface{}{"type": "string"},
					"website":      map[string]interface{}{"type": "string"},
					"description":  map[string]interface{}{"type": "string"},
				},
				"required": []string{"name"},
			},
			RequiredVars: []string{"documents"},
		},
		{
			Name:        TemplateInvestmentMetrics,
			Description: "Extracts revenue, traction, team, and funding metrics",
			SystemText: `You are an investment analyst extracting financial and operational metrics from deal documents.
Normalize every monetary value to plain dollars (e.g. $2.5M becomes 2500000). Express rates as percentages.
Report only metrics the documents state or directly imply. Respond with JSON only, no markdown fences.`,
			UserTemplate: `Extract investment metrics from the following documents.

Rules:
- revenue: arr, mrr, growth_rate (percent), gross_margin (percent)
- traction: customers, customer_growth_rate, churn_rate (0-100), nps (-100 to 100), active_users, conversion_rate, ltv_cac_ratio
- team: size, founders_count, key_hires, burn_rate (monthly dollars), runway_months
- funding: total_raised, last_round_size, last_round_date (YYYY-MM-DD), current_ask, valuation, stage
- Use null for anything the documents do not state. Absence is not zero.

Documents:
{documents}`,
			OutputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"revenue": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"arr":          map[string]interface{}{"type": "number"},
							"mrr":          map[string]interface{}{"type": "number"},
							"growth_rate":  map[string]interface{}{"type": "number"},
							"gross_margin": map[string]interface{}{"type": "number"},
						},
					},
					"traction": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"customers":            map[string]interface{}{"type": "number"},
							"customer_growth_rate": map[string]interface{}{"type": "number"},
							"churn_rate":           map[string]interface{}{"type": "number"},
							"nps":                  map[string]interface{}{"type": "number"},
							"active_users":         map[string]interface{}{"type": "number"},
							"conversion_rate":      map[string]interface{}{"type": "number"},
							"ltv_cac_ratio":        map[string]interface{}{"type": "number"},
						},
					},
					"team": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"size":           map[string]interface{}{"type": "number"},
							"founders_count": map[string]interface{}{"type": "number"},
							"key_hires": map[string]interface{}{
								"type":  "array",
								"items": map[string]interface{}{"type": "string"},
							},
							"burn_rate":     map[string]interface{}{"type": "number"},
							"runway_months": map[string]interface{}{"type": "number"},
						},
					},
					"funding": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"total_raised":    map[string]interface{}{"type": "number"},
							"last_round_size": map[string]interface{}{"type": "number"},
							"last_round_date": map[string]interface{}{"type": "string"},
							"current_ask":     map[string]interface{}{"type": "number"},
							"valuation":       map[string]interface{}{"type": "number"},
							"stage":           map[string]interface{}{"type": "string"},
						},
					},
				},
			},
			RequiredVars: []string{"documents"},
		},
		{
			Name:        TemplateMarketClaims,
			Description: "Extracts market sizing claims and go-to-market positioning",
			SystemText: `You are an investment analyst extracting market claims from deal documents.
Record the company's own claims as stated; do not correct them. Normalize market sizes to plain dollars.
Respond with JSON only, no markdown fences.`,
			UserTemplate: `Extract market claims from the following documents.

Rules:
- tam, sam, som: market sizes in plain dollars as claimed
- market_growth_rate: claimed market growth in percent
- market_description: one or two sentences on the market as the company frames it
- target_customer: who the company sells to
- go_to_market: the stated acquisition strategy

Documents:
{documents}`,
			OutputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tam":                map[string]interface{}{"type": "number"},
					"sam":                map[string]interface{}{"type": "number"},
					"som":                map[string]interface{}{"type": "number"},
					"market_growth_rate": map[string]interface{}{"type": "number"},
					"market_description": map[string]interface{}{"type": "string"},
					"target_customer":    map[string]interface{}{"type": "string"},
					"go_to_market":       map[string]interface{}{"type": "string"},
				},
			},
			RequiredVars: []string{"documents"},
		},
		{
			Name:        TemplateTeamAssessment,
			Description: "Assesses founder and team strength from deal documents",
			SystemText: `You are an investment analyst assessing the founding team described in deal documents.
Ground every judgement in the documents; cite roles and backgrounds as stated. Respond with JSON only, no markdown fences.`,
			UserTemplate: `Assess the team described in the following documents.

Rules:
- founders_background: prior companies, exits, and roles of the founders as stated
- strengths: concrete team strengths supported by the documents
- gaps: missing roles or experience a diligence process should probe
- prior_exits: count of founder exits if stated
- domain_expertise: how directly the founders' background matches the problem
- completeness: "full" when the documents cover the whole team, "partial" otherwise

Documents:
{documents}`,
			OutputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"founders_background": map[string]interface{}{"type": "string"},
					"strengths": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"gaps": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"prior_exits":      map[string]interface{}{"type": "number"},
					"domain_expertise": map[string]interface{}{"type": "string"},
					"completeness":     map[string]interface{}{"type": "string"},
				},
			},
			RequiredVars: []string{"documents"},
		},
	}
}
