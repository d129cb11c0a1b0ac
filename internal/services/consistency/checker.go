// -----------------------------------------------------------------------
// Consistency Checker - cross-document metric reconciliation, temporal
// sanity, and the document similarity matrix
// -----------------------------------------------------------------------

package consistency

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.ConsistencyService = (*Checker)(nil)

// confidenceEpsilon bounds float drift when comparing group confidences.
const confidenceEpsilon = 1e-9

// Checker cross-references the metric claims of a document set. Findings
// are data for the memo, never pipeline faults.
type Checker struct {
	tolerances          tolerances
	critical            []string
	criticalSet         map[string]bool
	requireAllDocuments bool
	prioritizeRecent    bool
	logger              arbor.ILogger
}

// NewChecker creates the checker from configuration.
func NewChecker(cfg *common.Config, logger arbor.ILogger) *Checker {
	criticalSet := make(map[string]bool, len(cfg.Consistency.CriticalMetrics))
	for _, name := range cfg.Consistency.CriticalMetrics {
		criticalSet[name] = true
	}

	return &Checker{
		tolerances:          newTolerances(cfg),
		critical:            append([]string(nil), cfg.Consistency.CriticalMetrics...),
		criticalSet:         criticalSet,
		requireAllDocuments: cfg.Consistency.RequireAllDocuments,
		prioritizeRecent:    cfg.Consistency.PrioritizeRecent,
		logger:              logger,
	}
}

// Check indexes every metric claim, partitions the claims into tolerance
// groups, and reports conflicts, coverage gaps, and timeline violations
// together with the pairwise document similarity matrix.
func (c *Checker) Check(results []*models.AnalysisResult, docs []*models.ProcessedDocument, analysisCtx *models.AnalysisContext) (*models.ConsistencyReport, error) {
	if len(results) == 0 {
		return nil, resilience.New(resilience.CategoryValidation, "no_results",
			"at least one analysis result is required")
	}
	if len(results) != len(docs) {
		return nil, resilience.New(resilience.CategoryValidation, "result_document_mismatch",
			fmt.Sprintf("%d analysis results for %d documents", len(results), len(docs)))
	}

	prioritizeRecent := c.prioritizeRecent
	requireAllDocuments := c.requireAllDocuments
	if analysisCtx != nil {
		prioritizeRecent = prioritizeRecent || analysisCtx.PrioritizeRecent
		requireAllDocuments = requireAllDocuments || analysisCtx.RequireAllDocuments
	}

	index, err := c.buildIndex(results, docs)
	if err != nil {
		return nil, err
	}

	var issues []models.ConsistencyIssue
	issues = append(issues, c.valueConflicts(index, prioritizeRecent)...)
	if requireAllDocuments {
		issues = append(issues, c.missingData(index, docs)...)
	}
	issues = append(issues, c.timelineIssues(index, results, docs)...)
	sortIssues(issues)

	penalty := 0.0
	for _, issue := range issues {
		penalty += issue.Severity.Weight()
	}
	score := 1.0
	if denominator := float64(len(c.critical) * len(docs)); denominator > 0 {
		score = math.Max(0, 1-penalty/denominator)
	}

	report := &models.ConsistencyReport{
		Issues:        issues,
		Similarity:    c.similarityMatrix(index, docs),
		OverallScore:  score,
		CheckedCount:  len(index.values),
		DocumentCount: len(docs),
		GeneratedAt:   time.Now().UTC(),
	}

	c.logger.Info().
		Int("documents", len(docs)).
		Int("metrics", report.CheckedCount).
		Int("issues", len(issues)).
		Float64("score", report.OverallScore).
		Msg("Consistency check completed")

	return report, nil
}

// metricIndex is the per-run view of every claim: all observations per
// metric, the first observation per document, and the document names.
type metricIndex struct {
	values   map[string][]models.MetricValue
	names    []string // metric names in first-seen order
	byDoc    map[string]map[string]models.MetricValue
	docNames map[string]string
}

func (m *metricIndex) sourceName(source string) string {
	if name := m.docNames[source]; name != "" {
		return name
	}
	return source
}

func (c *Checker) buildIndex(results []*models.AnalysisResult, docs []*models.ProcessedDocument) (*metricIndex, error) {
	index := &metricIndex{
		values:   make(map[string][]models.MetricValue),
		byDoc:    make(map[string]map[string]models.MetricValue, len(docs)),
		docNames: make(map[string]string, len(docs)),
	}

	for _, doc := range docs {
		if doc == nil {
			return nil, resilience.New(resilience.CategoryValidation, "nil_document",
				"document set contains a nil entry")
		}
		index.docNames[doc.ID] = doc.Metadata.Filename
		index.byDoc[doc.ID] = make(map[string]models.MetricValue)
	}

	for i, result := range results {
		if result == nil {
			return nil, resilience.New(resilience.CategoryValidation, "nil_result",
				"analysis result set contains a nil entry")
		}
		doc := docs[i]
		for _, entity := range result.Entities {
			source := entity.SourceDocumentID
			if source == "" {
				source = doc.ID
			}
			timestamp := entity.Timestamp
			if timestamp == nil && !doc.Metadata.UploadedAt.IsZero() {
				uploaded := doc.Metadata.UploadedAt
				timestamp = &uploaded
			}

			value := models.MetricValue{
				Value:      entity.Value,
				Source:     source,
				SourceName: index.sourceName(source),
				Confidence: entity.Confidence,
				Context:    entity.Context,
				Timestamp:  timestamp,
			}

			if _, seen := index.values[entity.Name]; !seen {
				index.names = append(index.names, entity.Name)
			}
			index.values[entity.Name] = append(index.values[entity.Name], value)

			perDoc, ok := index.byDoc[source]
			if !ok {
				perDoc = make(map[string]models.MetricValue)
				index.byDoc[source] = perDoc
			}
			if _, exists := perDoc[entity.Name]; !exists {
				perDoc[entity.Name] = value
			}
		}
	}

	return index, nil
}

// valueConflicts emits one issue per metric whose observations split into
// more than one tolerance group.
func (c *Checker) valueConflicts(index *metricIndex, prioritizeRecent bool) []models.ConsistencyIssue {
	var issues []models.ConsistencyIssue
	for _, name := range index.names {
		values := index.values[name]
		groups := c.tolerances.groupValues(classify(name, values), values)
		if len(groups) <= 1 {
			continue
		}

		severity := models.SeverityMedium
		if c.criticalSet[name] {
			severity = models.SeverityHigh
		}

		preferred := resolutionGroup(groups, prioritizeRecent)
		issues = append(issues, models.ConsistencyIssue{
			Type:     models.IssueValueConflict,
			Metric:   name,
			Severity: severity,
			Description: fmt.Sprintf("%s has %d conflicting values across documents",
				name, len(groups)),
			Groups: groups,
			SuggestedResolution: fmt.Sprintf("prefer %s from %s (mean confidence %.2f)",
				formatMetricValue(preferred.Representative),
				strings.Join(distinctSources(preferred.Values), ", "),
				preferred.MeanConfidence),
			AffectedDocuments: distinctSources(values),
		})
	}
	return issues
}

// missingData reports critical metrics that only part of the document set
// covers. Metrics absent everywhere are not findings.
func (c *Checker) missingData(index *metricIndex, docs []*models.ProcessedDocument) []models.ConsistencyIssue {
	var issues []models.ConsistencyIssue
	for _, metric := range c.critical {
		covered := 0
		var missing []string
		for _, doc := range docs {
			if _, ok := index.byDoc[doc.ID][metric]; ok {
				covered++
				continue
			}
			missing = append(missing, docLabel(doc))
		}
		if covered == 0 || covered == len(docs) {
			continue
		}

		issues = append(issues, models.ConsistencyIssue{
			Type:     models.IssueMissingData,
			Metric:   metric,
			Severity: models.SeverityMedium,
			Description: fmt.Sprintf("%s appears in %d of %d documents",
				metric, covered, len(docs)),
			AffectedDocuments: missing,
		})
	}
	return issues
}

// timelineIssues flags funding rounds dated before the company existed. A
// round offends only when it precedes Jan 1 of the earliest claimed
// founding year; disagreements between the claims themselves surface as
// value conflicts instead.
func (c *Checker) timelineIssues(index *metricIndex, results []*models.AnalysisResult, docs []*models.ProcessedDocument) []models.ConsistencyIssue {
	earliest := 0
	var earliestSources []string
	consider := func(year int, label string) {
		if year <= 0 {
			return
		}
		if earliest == 0 || year < earliest {
			earliest = year
			earliestSources = []string{label}
			return
		}
		if year == earliest {
			earliestSources = appendDistinct(earliestSources, label)
		}
	}

	for _, value := range index.values["founded_year"] {
		if year, ok := asFloat(value.Value); ok {
			consider(int(year), sourceLabel(value))
		}
	}
	for i, result := range results {
		consider(result.CompanyProfile.FoundedYear, docLabel(docs[i]))
	}
	if earliest == 0 {
		return nil
	}

	foundingDate := time.Date(earliest, time.January, 1, 0, 0, 0, 0, time.UTC)

	type offence struct {
		date    time.Time
		sources []string
	}
	var offences []offence
	record := func(date time.Time, label string) {
		for i := range offences {
			if offences[i].date.Equal(date) {
				offences[i].sources = appendDistinct(offences[i].sources, label)
				return
			}
		}
		offences = append(offences, offence{date: date, sources: []string{label}})
	}

	for _, value := range index.values["last_round_date"] {
		if date, ok := value.Value.(time.Time); ok && date.Before(foundingDate) {
			record(date, sourceLabel(value))
		}
	}
	for i, result := range results {
		date := result.Metrics.Funding.LastRoundDate
		if date != nil && date.Before(foundingDate) {
			record(*date, docLabel(docs[i]))
		}
	}

	var issues []models.ConsistencyIssue
	for _, off := range offences {
		affected := append([]string(nil), off.sources...)
		for _, label := range earliestSources {
			affected = appendDistinct(affected, label)
		}
		issues = append(issues, models.ConsistencyIssue{
			Type:     models.IssueTimeline,
			Metric:   "last_round_date",
			Severity: models.SeverityHigh,
			Description: fmt.Sprintf("funding round dated %s precedes founding year %d",
				off.date.Format("2006-01-02"), earliest),
			AffectedDocuments: affected,
		})
	}
	return issues
}

// similarityMatrix scores metric agreement for every document pair over
// the metrics both documents report. Pairs with no shared metrics do not
// contradict each other and score 1.
func (c *Checker) similarityMatrix(index *metricIndex, docs []*models.ProcessedDocument) []models.DocumentSimilarity {
	if len(docs) < 2 {
		return nil
	}

	var matrix []models.DocumentSimilarity
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			left := index.byDoc[docs[i].ID]
			right := index.byDoc[docs[j].ID]

			aligned, conflicting := 0, 0
			for metric, leftValue := range left {
				rightValue, shared := right[metric]
				if !shared {
					continue
				}
				if c.tolerances.equivalent(classify(metric, index.values[metric]), leftValue.Value, rightValue.Value) {
					aligned++
				} else {
					conflicting++
				}
			}

			similarity := 1.0
			if aligned+conflicting > 0 {
				similarity = float64(aligned) / float64(aligned+conflicting)
			}
			matrix = append(matrix, models.DocumentSimilarity{
				DocumentA:   docs[i].ID,
				DocumentB:   docs[j].ID,
				Aligned:     aligned,
				Conflicting: conflicting,
				Similarity:  similarity,
			})
		}
	}
	return matrix
}

// resolutionGroup picks the group to recommend: highest mean confidence,
// with the most recently timestamped group breaking ties when recency is
// prioritized.
func resolutionGroup(groups []models.ValueGroup, prioritizeRecent bool) models.ValueGroup {
	best := groups[0]
	for _, group := range groups[1:] {
		switch {
		case group.MeanConfidence > best.MeanConfidence+confidenceEpsilon:
			best = group
		case math.Abs(group.MeanConfidence-best.MeanConfidence) <= confidenceEpsilon &&
			prioritizeRecent && latestTimestamp(group).After(latestTimestamp(best)):
			best = group
		}
	}
	return best
}

func latestTimestamp(group models.ValueGroup) time.Time {
	var latest time.Time
	for _, value := range group.Values {
		if value.Timestamp != nil && value.Timestamp.After(latest) {
			latest = *value.Timestamp
		}
	}
	return latest
}

// sortIssues orders findings by metric ascending then severity descending
// so repeated runs emit identical reports.
func sortIssues(issues []models.ConsistencyIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Metric != issues[j].Metric {
			return issues[i].Metric < issues[j].Metric
		}
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity.Weight() > issues[j].Severity.Weight()
		}
		return issues[i].Type < issues[j].Type
	})
}

func sourceLabel(value models.MetricValue) string {
	if value.SourceName != "" {
		return value.SourceName
	}
	return value.Source
}

func docLabel(doc *models.ProcessedDocument) string {
	if doc.Metadata.Filename != "" {
		return doc.Metadata.Filename
	}
	return doc.ID
}

func distinctSources(values []models.MetricValue) []string {
	var sources []string
	for _, value := range values {
		sources = appendDistinct(sources, sourceLabel(value))
	}
	return sources
}

func appendDistinct(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func formatMetricValue(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case time.Time:
		return value.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}
