// Package shared contains the error taxonomy and utilities used across the application.
package shared

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies a failure for logging and retry decisions.
type Category string

const (
	// CategoryAPI represents errors returned by an upstream API.
	CategoryAPI Category = "api_error"
	// CategoryRateLimit represents rate limiting by an upstream API.
	CategoryRateLimit Category = "rate_limit"
	// CategoryNetwork represents transport-level failures.
	CategoryNetwork Category = "network_error"
	// CategoryValidation represents input validation failures.
	CategoryValidation Category = "validation_error"
	// CategoryFile represents local filesystem failures.
	CategoryFile Category = "file_error"
	// CategoryParsing represents malformed payloads or files.
	CategoryParsing Category = "parsing_error"
	// CategoryAuth represents missing or rejected credentials.
	CategoryAuth Category = "auth_error"
	// CategoryUnknown represents unclassified failures.
	CategoryUnknown Category = "unknown"
)

// Severity describes how loudly a failure should be reported.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultRetryAfter is the fallback rate-limit hint in seconds when the
// upstream response does not carry one.
const DefaultRetryAfter = 60

// Error is the common envelope for classified failures. Dispatch on Category,
// not on concrete types; there is exactly one error type in the taxonomy.
// An Error is written once to the log and never mutated afterwards.
type Error struct {
	Message    string
	Category   Category
	Severity   Severity
	Context    map[string]any
	RetryAfter int // seconds; set for rate-limit errors, informational only
	Timestamp  time.Time
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// New creates a classified error with the given category and medium severity.
func New(message string, category Category) *Error {
	return &Error{
		Message:   message,
		Category:  category,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
	}
}

// NewAPI creates an upstream API error.
func NewAPI(message string) *Error {
	return New(message, CategoryAPI)
}

// NewRateLimit creates a rate-limit error carrying a retry-after hint in
// seconds. Non-positive hints fall back to DefaultRetryAfter.
func NewRateLimit(message string, retryAfter int) *Error {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	e := New(message, CategoryRateLimit)
	e.RetryAfter = retryAfter
	return e
}

// NewValidation creates a data validation error.
func NewValidation(message string) *Error {
	return New(message, CategoryValidation)
}

// WithSeverity sets the severity and returns the error for chaining.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithContext adds a key/value pair to the error context and returns the
// error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Fields returns the taxonomy attributes as a flat map for structured logging
// and serialization.
func (e *Error) Fields() map[string]any {
	f := map[string]any{
		"message":   e.Message,
		"category":  string(e.Category),
		"severity":  string(e.Severity),
		"context":   e.Context,
		"timestamp": e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.RetryAfter > 0 {
		f["retry_after"] = e.RetryAfter
	}
	return f
}

// Classified extracts the taxonomy envelope from err, unwrapping as needed.
func Classified(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CategoryOf returns the category of err, or CategoryUnknown when err carries
// no taxonomy envelope.
func CategoryOf(err error) Category {
	if e, ok := Classified(err); ok {
		return e.Category
	}
	return CategoryUnknown
}

// SeverityOf returns the severity of err, or SeverityMedium when err carries
// no taxonomy envelope.
func SeverityOf(err error) Severity {
	if e, ok := Classified(err); ok {
		return e.Severity
	}
	return SeverityMedium
}

// RetryableCategories builds a retry predicate matching errors whose category
// is in the given set. Unclassified errors never match.
func RetryableCategories(categories ...Category) func(error) bool {
	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return func(err error) bool {
		e, ok := Classified(err)
		if !ok {
			return false
		}
		_, ok = set[e.Category]
		return ok
	}
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
// It returns a new error that formats as "context: err".
// If err is nil, Wrapf returns nil.
// If formatted context is empty, returns the original error.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}
