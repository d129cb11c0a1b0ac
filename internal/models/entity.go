package models

import "time"

// EntityType categorizes an extracted entity.
type EntityType string

const (
	EntityFinancial   EntityType = "financial"
	EntityMarket      EntityType = "market"
	EntityTeam        EntityType = "team"
	EntityCompany     EntityType = "company"
	EntityFunding     EntityType = "funding"
	EntityProduct     EntityType = "product"
	EntityCompetitive EntityType = "competitive"
)

// EntityMethod records which extractor produced an entity.
type EntityMethod string

const (
	EntityMethodPattern EntityMethod = "pattern"
	EntityMethodAI      EntityMethod = "ai"
	// EntityMethodMerged marks an entity that both extractors reported
	EntityMethodMerged EntityMethod = "merged"
)

// ExtractedEntity is a single metric or fact pulled from a document.
// Value holds a float64, string, or time.Time depending on the metric.
type ExtractedEntity struct {
	Type             EntityType   `json:"type"`
	Name             string       `json:"name"` // Canonical metric name, e.g. "arr"
	Value            interface{}  `json:"value"`
	Unit             string       `json:"unit,omitempty"`
	Confidence       float64      `json:"confidence"`
	SourceDocumentID string       `json:"source_document_id"`
	Context          string       `json:"context,omitempty"` // Surrounding snippet
	ExtractionMethod EntityMethod `json:"extraction_method"`
	Timestamp        *time.Time   `json:"timestamp,omitempty"` // Document-attributed date when known
}

// NumericValue returns the entity value as a float64 when it carries one.
func (e *ExtractedEntity) NumericValue() (float64, bool) {
	switch v := e.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// StringValue returns the entity value as a string when it carries one.
func (e *ExtractedEntity) StringValue() (string, bool) {
	s, ok := e.Value.(string)
	return s, ok
}

// TimeValue returns the entity value as a time when it carries one.
func (e *ExtractedEntity) TimeValue() (time.Time, bool) {
	t, ok := e.Value.(time.Time)
	return t, ok
}
