package memo

import (
	"fmt"
	"strings"

	"github.com/ternarybob/aestimo/internal/models"
)

// conflictRiskTypes maps a conflicting metric to the risk it evidences.
var conflictRiskTypes = map[string]models.RiskType{
	"arr":             models.RiskFinancialInconsistency,
	"mrr":             models.RiskFinancialInconsistency,
	"total_raised":    models.RiskFinancialInconsistency,
	"last_round_size": models.RiskFinancialInconsistency,
	"current_ask":     models.RiskFinancialInconsistency,
	"valuation":       models.RiskFinancialInconsistency,
	"burn_rate":       models.RiskFinancialInconsistency,
	"tam":             models.RiskMarketSizeConcern,
	"sam":             models.RiskMarketSizeConcern,
	"som":             models.RiskMarketSizeConcern,
	"team_size":       models.RiskTeamGap,
	"founders_count":  models.RiskTeamGap,
}

// DeriveRisks turns consistency findings and analysis weak spots into the
// risk register the memo consumes. Output order is deterministic:
// consistency-derived risks in report order, then analysis-derived ones.
func DeriveRisks(result *models.AnalysisResult, report *models.ConsistencyReport) []models.RiskFlag {
	var risks []models.RiskFlag
	seq := 0
	add := func(riskType models.RiskType, severity models.Severity, description, mitigation string, metrics, sources []string) {
		seq++
		risks = append(risks, models.RiskFlag{
			ID:                  fmt.Sprintf("risk_%03d", seq),
			Type:                riskType,
			Severity:            severity,
			Description:         description,
			AffectedMetrics:     metrics,
			SuggestedMitigation: mitigation,
			SourceDocuments:     sources,
		})
	}

	if report != nil {
		for _, issue := range report.Issues {
			switch issue.Type {
			case models.IssueValueConflict:
				riskType, ok := conflictRiskTypes[issue.Metric]
				if !ok {
					riskType = models.RiskFinancialInconsistency
				}
				mitigation := issue.SuggestedResolution
				if mitigation == "" {
					mitigation = "request source documentation for the conflicting figures"
				}
				add(riskType, issue.Severity, issue.Description, mitigation,
					[]string{issue.Metric}, issue.AffectedDocuments)
			case models.IssueTimeline:
				add(models.RiskTimeline, issue.Severity, issue.Description,
					"clarify the funding and founding chronology with dated documentation",
					[]string{issue.Metric}, issue.AffectedDocuments)
			case models.IssueMissingData:
				// Coverage gaps lower data quality and surface as memo
				// warnings rather than investment risks.
			}
		}
	}

	if result != nil {
		claims := result.MarketClaims
		switch {
		case claims.TAM == nil:
			add(models.RiskMarketSizeConcern, models.SeverityMedium,
				"the addressable market is not quantified in any document",
				"request a bottom-up TAM model with pricing and segment counts", nil, nil)
		case *claims.TAM < 500e6:
			add(models.RiskMarketSizeConcern, models.SeverityMedium,
				fmt.Sprintf("claimed TAM of $%.0fM leaves limited room for venture-scale outcomes", *claims.TAM/1e6),
				"validate expansion paths beyond the initial market", []string{"tam"}, nil)
		}

		if n := len(result.Competitive.Threats); n >= 3 {
			severity := models.SeverityMedium
			if n >= 5 {
				severity = models.SeverityHigh
			}
			add(models.RiskCompetitiveThreat, severity,
				fmt.Sprintf("%d competitive threats identified: %s", n, strings.Join(result.Competitive.Threats, "; ")),
				"probe differentiation durability against each named threat", nil, nil)
		}

		if gaps := result.TeamAssessment.Gaps; len(gaps) > 0 {
			severity := models.SeverityMedium
			if len(gaps) >= 3 {
				severity = models.SeverityHigh
			}
			add(models.RiskTeamGap, severity,
				fmt.Sprintf("team gaps identified: %s", strings.Join(gaps, "; ")),
				"review the hiring plan covering each gap", nil, nil)
		}
		if fc := result.Metrics.Team.FoundersCount; fc != nil && *fc == 1 {
			add(models.RiskTeamGap, models.SeverityLow,
				"single-founder company",
				"assess key-person exposure and early leadership hires", []string{"founders_count"}, nil)
		}

		if stage := stageScoreBucket(result.Product.DevelopmentStage); stage == "early" {
			add(models.RiskProduct, models.SeverityMedium,
				fmt.Sprintf("product is pre-launch (%s)", result.Product.DevelopmentStage),
				"define the milestones and timeline to general availability", nil, nil)
		}
	}

	return risks
}

// stageScoreBucket coarsely buckets a development-stage narrative.
func stageScoreBucket(stage string) string {
	s := strings.ToLower(stage)
	for _, keyword := range []string{"concept", "idea", "prototype", "alpha"} {
		if strings.Contains(s, keyword) {
			return "early"
		}
	}
	return "launched"
}

// countBySeverity tallies risks at the given severity.
func countBySeverity(risks []models.RiskFlag, severity models.Severity) int {
	n := 0
	for _, r := range risks {
		if r.Severity == severity {
			n++
		}
	}
	return n
}
