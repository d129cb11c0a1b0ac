// -----------------------------------------------------------------------
// Error Taxonomy - Categorical errors with retry semantics
// Every outward-facing failure in the pipeline is classified here
// -----------------------------------------------------------------------

package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category is the error classification. Retryability is a property of the
// category; callers must respect it.
type Category string

const (
	CategoryValidation         Category = "validation"
	CategoryDocumentProcessing Category = "document_processing"
	CategoryAIService          Category = "ai_service"
	CategoryNetwork            Category = "network"
	CategoryRateLimit          Category = "rate_limit"
	CategoryAuthentication     Category = "authentication"
	CategoryGoogleCloud        Category = "google_cloud"
	CategoryInternal           Category = "internal"
)

// Severity grades an error for triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Stable error codes shared across services. Components add their own
// codes; these are the ones the resilience kit itself emits.
const (
	CodeCircuitOpen      = "circuit_open"
	CodeCancelled        = "cancelled"
	CodeTimeout          = "timeout"
	CodeRetryExhausted   = "retry_exhausted"
	CodeExtractionFailed = "extraction_failed"
)

type categoryProfile struct {
	retryable bool
	severity  Severity
	httpHint  int
	action    string
}

var categoryProfiles = map[Category]categoryProfile{
	CategoryValidation:         {false, SeverityMedium, 400, "Correct the input and resubmit"},
	CategoryDocumentProcessing: {false, SeverityMedium, 422, "Check the document format and re-upload"},
	CategoryAIService:          {true, SeverityHigh, 502, "Retry; the model endpoint may be saturated"},
	CategoryNetwork:            {true, SeverityMedium, 503, "Retry when connectivity recovers"},
	CategoryRateLimit:          {true, SeverityLow, 429, "Wait for the provider quota window to reset"},
	CategoryAuthentication:     {false, SeverityCritical, 401, "Verify the configured API credentials"},
	CategoryGoogleCloud:        {true, SeverityHigh, 502, "Check the external service status"},
	CategoryInternal:           {false, SeverityCritical, 500, "Report this failure with the run ID"},
}

// Error is the taxonomy error carried across every pipeline boundary.
type Error struct {
	Category        Category               `json:"category"`
	Code            string                 `json:"code"`
	Message         string                 `json:"message"`
	Severity        Severity               `json:"severity"`
	Retryable       bool                   `json:"retryable"`
	HTTPStatusHint  int                    `json:"http_status_hint,omitempty"`
	SuggestedAction string                 `json:"suggested_action,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	cause           error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Category, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a key/value to the error and returns it.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithSeverity overrides the category default severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithAction overrides the category default suggested action.
func (e *Error) WithAction(action string) *Error {
	e.SuggestedAction = action
	return e
}

// New creates a taxonomy error. Retryable, severity, HTTP hint and the
// suggested action default from the category.
func New(category Category, code, message string) *Error {
	p := categoryProfiles[category]
	return &Error{
		Category:        category,
		Code:            code,
		Message:         message,
		Severity:        p.severity,
		Retryable:       p.retryable,
		HTTPStatusHint:  p.httpHint,
		SuggestedAction: p.action,
		Timestamp:       time.Now().UTC(),
	}
}

// Wrap creates a taxonomy error around a cause.
func Wrap(cause error, category Category, code, message string) *Error {
	e := New(category, code, message)
	e.cause = cause
	return e
}

// NewCircuitOpen builds the distinguished error a breaker returns while
// rejecting calls.
func NewCircuitOpen(service string) *Error {
	e := New(CategoryInternal, CodeCircuitOpen, fmt.Sprintf("circuit breaker for %s is open", service))
	e.Retryable = false
	e.Severity = SeverityHigh
	e.SuggestedAction = "Wait for the recovery timeout before retrying"
	return e.WithDetail("service", service)
}

// NewCancelled builds the non-retryable cancellation error.
func NewCancelled(op string) *Error {
	e := New(CategoryInternal, CodeCancelled, fmt.Sprintf("%s cancelled", op))
	e.Retryable = false
	e.Severity = SeverityLow
	e.SuggestedAction = "None; the caller abandoned the request"
	return e
}

// AsError extracts a taxonomy error from an error chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	if te, ok := AsError(err); ok {
		return te.Code == CodeCircuitOpen
	}
	return false
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	if te, ok := AsError(err); ok {
		return te.Code == CodeCancelled
	}
	return errors.Is(err, context.Canceled)
}

// IsRetryable reports the retry decision for any error. Unknown errors are
// classified first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := AsError(err); ok {
		return te.Retryable
	}
	return Classify(err).Retryable
}

// Classify maps an anonymous error onto the taxonomy using its message.
// Already-classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := AsError(err); ok {
		return te
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, CategoryInternal, CodeCancelled, "operation cancelled").
			WithSeverity(SeverityLow)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CategoryNetwork, CodeTimeout, "operation timed out")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "rate limit", "too many requests", "429", "resource_exhausted", "quota"):
		return Wrap(err, CategoryRateLimit, "rate_limited", "provider rate limit hit")
	case containsAny(msg, "timeout", "timed out", "econnreset", "connection refused", "network", "no such host"):
		return Wrap(err, CategoryNetwork, "network_failure", "network call failed")
	case containsAny(msg, "unauthorized", "401", "permission", "forbidden", "api key"):
		return Wrap(err, CategoryAuthentication, "auth_failed", "authentication rejected")
	case containsAny(msg, "invalid", "schema", "malformed"):
		return Wrap(err, CategoryValidation, "invalid_input", "input failed validation")
	default:
		return Wrap(err, CategoryInternal, "unclassified", "unexpected failure")
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
