package models

import "time"

// Severity grades consistency issues and risk flags.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight returns the penalty weight an issue of this severity contributes
// to the overall consistency score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// IssueType classifies consistency findings.
type IssueType string

const (
	IssueValueConflict IssueType = "value_conflict"
	IssueMissingData   IssueType = "missing_data"
	IssueTimeline      IssueType = "timeline_inconsistency"
)

// MetricValue is one observation of a metric in one document.
type MetricValue struct {
	Value      interface{} `json:"value"`
	Source     string      `json:"source"`      // Document ID
	SourceName string      `json:"source_name"` // Document filename for reporting
	Confidence float64     `json:"confidence"`
	Context    string      `json:"context,omitempty"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
}

// ValueGroup is an equivalence class of observations under the metric's
// tolerance rule.
type ValueGroup struct {
	Representative interface{}   `json:"representative"`
	Values         []MetricValue `json:"values"`
	MeanConfidence float64       `json:"mean_confidence"`
}

// ConsistencyIssue is one finding emitted by the checker. Findings are
// data, not faults.
type ConsistencyIssue struct {
	Type                IssueType    `json:"type"`
	Metric              string       `json:"metric"`
	Severity            Severity     `json:"severity"`
	Description         string       `json:"description"`
	Groups              []ValueGroup `json:"groups,omitempty"`
	SuggestedResolution string       `json:"suggested_resolution,omitempty"`
	AffectedDocuments   []string     `json:"affected_documents,omitempty"`
}

// DocumentSimilarity scores metric agreement between a pair of documents.
type DocumentSimilarity struct {
	DocumentA   string  `json:"document_a"`
	DocumentB   string  `json:"document_b"`
	Aligned     int     `json:"aligned"`
	Conflicting int     `json:"conflicting"`
	Similarity  float64 `json:"similarity"` // aligned / (aligned + conflicting)
}

// ConsistencyReport is the checker output. Issues are sorted by metric
// ascending then severity descending so repeated runs are byte-identical.
type ConsistencyReport struct {
	Issues        []ConsistencyIssue   `json:"issues"`
	Similarity    []DocumentSimilarity `json:"similarity,omitempty"`
	OverallScore  float64              `json:"overall_score"` // max(0, 1 - penalty/(criticals x docs))
	CheckedCount  int                  `json:"checked_count"`
	DocumentCount int                  `json:"document_count"`
	GeneratedAt   time.Time            `json:"generated_at"`
}
