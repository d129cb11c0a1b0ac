package memo

import (
	"fmt"
	"strings"

	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
)

// RenderMarkdown produces the memo as a markdown document.
func (e *Engine) RenderMarkdown(memo *models.DealMemo) (string, error) {
	if memo == nil {
		return "", resilience.New(resilience.CategoryValidation, "memo_missing", "no memo to render")
	}

	var md strings.Builder
	md.WriteString(fmt.Sprintf("# Deal Memo: %s\n\n", memo.Summary.CompanyName))
	if memo.Summary.OneLiner != "" {
		md.WriteString(fmt.Sprintf("%s\n\n", memo.Summary.OneLiner))
	}
	md.WriteString(fmt.Sprintf("**Recommendation:** %s | **Signal Score:** %.1f/100 | **Confidence:** %.2f\n\n",
		memo.InvestmentRecommendation.Decision, memo.Summary.SignalScore, memo.Summary.Confidence))

	md.WriteString("## Company\n\n")
	md.WriteString("| Field | Value |\n")
	md.WriteString("|-------|-------|\n")
	md.WriteString(fmt.Sprintf("| Sector | %s |\n", valueOr(memo.Summary.Sector, "unknown")))
	md.WriteString(fmt.Sprintf("| Stage | %s |\n", valueOr(string(memo.Summary.Stage), "unknown")))
	md.WriteString(fmt.Sprintf("| Overall Risk | %s |\n", memo.RiskAssessment.OverallRiskLevel))
	md.WriteString(fmt.Sprintf("| Consistency Score | %.2f |\n\n", memo.RiskAssessment.ConsistencyScore))

	writeScoreSection(&md, memo)
	writeBenchmarkSection(&md, memo.KeyBenchmarks)
	writeGrowthSection(&md, memo.GrowthPotential)
	writeRiskSection(&md, memo.RiskAssessment)
	writeRecommendationSection(&md, memo.InvestmentRecommendation)
	writeMetadataSection(&md, memo.Metadata)

	return md.String(), nil
}

// RenderPDF produces the memo as PDF bytes via the markdown renderer.
func (e *Engine) RenderPDF(memo *models.DealMemo) ([]byte, error) {
	if e.pdf == nil {
		return nil, resilience.New(resilience.CategoryInternal, "pdf_unavailable", "no PDF renderer configured")
	}
	markdown, err := e.RenderMarkdown(memo)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Deal Memo: %s", memo.Summary.CompanyName)
	return e.pdf.ConvertMarkdownToPDF(markdown, title)
}

func writeScoreSection(md *strings.Builder, memo *models.DealMemo) {
	breakdown := memo.ScoreBreakdown
	weights := memo.AnalysisWeightings

	md.WriteString("## Score Breakdown\n\n")
	md.WriteString("| Component | Raw | Weight | Weighted |\n")
	md.WriteString("|-----------|-----|--------|----------|\n")
	rows := []struct {
		name     string
		raw      float64
		weight   float64
		weighted float64
	}{
		{"Market Opportunity", breakdown.RawComponents.MarketOpportunity, weights.MarketOpportunity, breakdown.WeightedComponents.MarketOpportunity},
		{"Team", breakdown.RawComponents.Team, weights.Team, breakdown.WeightedComponents.Team},
		{"Traction", breakdown.RawComponents.Traction, weights.Traction, breakdown.WeightedComponents.Traction},
		{"Product", breakdown.RawComponents.Product, weights.Product, breakdown.WeightedComponents.Product},
		{"Competitive Position", breakdown.RawComponents.CompetitivePosition, weights.CompetitivePosition, breakdown.WeightedComponents.CompetitivePosition},
	}
	for _, row := range rows {
		md.WriteString(fmt.Sprintf("| %s | %.1f | %.0f%% | %.1f |\n", row.name, row.raw, row.weight, row.weighted))
	}
	md.WriteString(fmt.Sprintf("| **Total** | | | **%.1f** |\n\n", breakdown.TotalScore))
	if breakdown.Methodology != "" {
		md.WriteString(fmt.Sprintf("%s\n\n", breakdown.Methodology))
	}
}

func writeBenchmarkSection(md *strings.Builder, rows []models.BenchmarkComparison) {
	md.WriteString("## Benchmark Comparison\n\n")
	if len(rows) == 0 {
		md.WriteString("Benchmark comparison unavailable for this analysis.\n\n")
		return
	}
	md.WriteString("| Metric | Company | P25 | P50 | P75 | P90 | Percentile | Standing |\n")
	md.WriteString("|--------|---------|-----|-----|-----|-----|------------|----------|\n")
	for _, row := range rows {
		md.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d | %s |\n",
			row.Metric, formatMetric(row.CompanyValue),
			formatMetric(row.SectorP25), formatMetric(row.SectorP50),
			formatMetric(row.SectorP75), formatMetric(row.SectorP90),
			row.PercentileRank, row.Standing))
	}
	md.WriteString("\n")
}

func writeGrowthSection(md *strings.Builder, growth models.GrowthPotential) {
	md.WriteString("## Growth Potential\n\n")
	md.WriteString(fmt.Sprintf("**Current Growth Rate:** %.0f%%\n\n", growth.GrowthRate))
	md.WriteString("| Horizon | Projected Revenue |\n")
	md.WriteString("|---------|-------------------|\n")
	md.WriteString(fmt.Sprintf("| Year 1 | %s |\n", formatMoney(growth.ProjectedRevenue.Year1)))
	md.WriteString(fmt.Sprintf("| Year 3 | %s |\n", formatMoney(growth.ProjectedRevenue.Year3)))
	md.WriteString(fmt.Sprintf("| Year 5 | %s |\n\n", formatMoney(growth.ProjectedRevenue.Year5)))
	if len(growth.Assumptions) > 0 {
		md.WriteString("**Assumptions:**\n\n")
		for _, assumption := range growth.Assumptions {
			md.WriteString(fmt.Sprintf("- %s\n", assumption))
		}
		md.WriteString("\n")
	}
}

func writeRiskSection(md *strings.Builder, assessment models.RiskAssessment) {
	md.WriteString("## Risk Assessment\n\n")
	total := len(assessment.HighPriorityRisks) + len(assessment.MediumPriorityRisks) + len(assessment.LowPriorityRisks)
	if total == 0 {
		md.WriteString("No material risks identified.\n\n")
		return
	}
	writeRiskGroup(md, "High Priority", assessment.HighPriorityRisks)
	writeRiskGroup(md, "Medium Priority", assessment.MediumPriorityRisks)
	writeRiskGroup(md, "Low Priority", assessment.LowPriorityRisks)
}

func writeRiskGroup(md *strings.Builder, label string, risks []models.MemoRisk) {
	if len(risks) == 0 {
		return
	}
	md.WriteString(fmt.Sprintf("### %s\n\n", label))
	for _, risk := range risks {
		md.WriteString(fmt.Sprintf("- **%s**: %s\n", risk.Type, risk.Description))
		if risk.Mitigation != "" {
			md.WriteString(fmt.Sprintf("  - Mitigation: %s\n", risk.Mitigation))
		}
	}
	md.WriteString("\n")
}

func writeRecommendationSection(md *strings.Builder, rec models.InvestmentRecommendation) {
	md.WriteString("## Investment Recommendation\n\n")
	md.WriteString(fmt.Sprintf("**Decision:** %s\n\n", rec.Decision))
	md.WriteString(fmt.Sprintf("%s\n\n", rec.Rationale))
	md.WriteString(fmt.Sprintf("**Suggested Check Size:** %s\n\n", formatMoney(rec.SuggestedCheckSize)))
	if rec.ValuationCap.High > 0 {
		md.WriteString(fmt.Sprintf("**Valuation Cap Band:** %s - %s\n\n",
			formatMoney(rec.ValuationCap.Low), formatMoney(rec.ValuationCap.High)))
	} else {
		md.WriteString("**Valuation Cap Band:** not established (pre-revenue)\n\n")
	}
	md.WriteString(fmt.Sprintf("**Diligence Timeline:** %s\n\n", rec.Timeline))
	if len(rec.DiligenceQuestions) > 0 {
		md.WriteString("### Diligence Questions\n\n")
		for i, question := range rec.DiligenceQuestions {
			md.WriteString(fmt.Sprintf("%d. %s\n", i+1, question))
		}
		md.WriteString("\n")
	}
}

func writeMetadataSection(md *strings.Builder, meta models.MemoMetadata) {
	md.WriteString("## Analysis Metadata\n\n")
	md.WriteString(fmt.Sprintf("- Generated by %s %s at %s\n", meta.GeneratedBy, meta.AnalysisVersion,
		meta.GeneratedAt.Format("2006-01-02 15:04 MST")))
	md.WriteString(fmt.Sprintf("- Data quality: %.2f\n", meta.DataQuality))
	if len(meta.SourceDocuments) > 0 {
		md.WriteString(fmt.Sprintf("- Source documents: %s\n", strings.Join(meta.SourceDocuments, ", ")))
	}
	for _, warning := range meta.Warnings {
		md.WriteString(fmt.Sprintf("- Warning: %s\n", warning))
	}
}

// formatMoney renders dollar amounts with K/M/B suffixes.
func formatMoney(val float64) string {
	neg := val < 0
	if neg {
		val = -val
	}
	var formatted string
	switch {
	case val >= 1e9:
		formatted = fmt.Sprintf("$%.1fB", val/1e9)
	case val >= 1e6:
		formatted = fmt.Sprintf("$%.1fM", val/1e6)
	case val >= 1e3:
		formatted = fmt.Sprintf("$%.0fK", val/1e3)
	default:
		formatted = fmt.Sprintf("$%.0f", val)
	}
	if neg {
		formatted = "-" + formatted
	}
	return formatted
}

// formatMetric renders benchmark values, large ones with money suffixes.
func formatMetric(val float64) string {
	if val >= 10_000 {
		return formatMoney(val)
	}
	if val == float64(int64(val)) {
		return fmt.Sprintf("%.0f", val)
	}
	return fmt.Sprintf("%.1f", val)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
