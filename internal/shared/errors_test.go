package shared_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppcbatch/internal/shared"
)

func TestNewDefaults(t *testing.T) {
	e := shared.New("boom", shared.CategoryNetwork)

	assert.Equal(t, "boom", e.Error())
	assert.Equal(t, shared.CategoryNetwork, e.Category)
	assert.Equal(t, shared.SeverityMedium, e.Severity)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
	assert.Zero(t, e.RetryAfter)
}

func TestNewRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter int
		expected   int
	}{
		{"explicit hint", 120, 120},
		{"zero falls back", 0, 60},
		{"negative falls back", -5, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := shared.NewRateLimit("slow down", tt.retryAfter)
			assert.Equal(t, shared.CategoryRateLimit, e.Category)
			assert.Equal(t, tt.expected, e.RetryAfter)
		})
	}
}

func TestWithSeverityAndContext(t *testing.T) {
	e := shared.NewAPI("upstream said no").
		WithSeverity(shared.SeverityHigh).
		WithContext("status", 500).
		WithContext("endpoint", "/live")

	assert.Equal(t, shared.SeverityHigh, e.Severity)
	assert.Equal(t, 500, e.Context["status"])
	assert.Equal(t, "/live", e.Context["endpoint"])
}

func TestFields(t *testing.T) {
	e := shared.NewRateLimit("slow down", 30).WithContext("endpoint", "/live")
	f := e.Fields()

	assert.Equal(t, "slow down", f["message"])
	assert.Equal(t, "rate_limit", f["category"])
	assert.Equal(t, "medium", f["severity"])
	assert.Equal(t, 30, f["retry_after"])

	// retry_after is omitted when it carries no hint
	f = shared.NewAPI("nope").Fields()
	assert.NotContains(t, f, "retry_after")
}

func TestClassified(t *testing.T) {
	e := shared.NewValidation("bad input")
	wrapped := fmt.Errorf("loading config: %w", e)

	got, ok := shared.Classified(wrapped)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = shared.Classified(errors.New("plain"))
	assert.False(t, ok)

	_, ok = shared.Classified(nil)
	assert.False(t, ok)
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, shared.CategoryAuth, shared.CategoryOf(shared.New("denied", shared.CategoryAuth)))
	assert.Equal(t, shared.CategoryUnknown, shared.CategoryOf(errors.New("plain")))
}

func TestSeverityOf(t *testing.T) {
	e := shared.New("bad", shared.CategoryAPI).WithSeverity(shared.SeverityCritical)
	assert.Equal(t, shared.SeverityCritical, shared.SeverityOf(e))
	assert.Equal(t, shared.SeverityMedium, shared.SeverityOf(errors.New("plain")))
}

func TestRetryableCategories(t *testing.T) {
	retryable := shared.RetryableCategories(shared.CategoryNetwork, shared.CategoryRateLimit)

	assert.True(t, retryable(shared.New("timeout", shared.CategoryNetwork)))
	assert.True(t, retryable(shared.NewRateLimit("slow down", 0)))
	assert.True(t, retryable(fmt.Errorf("wrapped: %w", shared.New("timeout", shared.CategoryNetwork))))

	assert.False(t, retryable(shared.NewValidation("bad input")))
	assert.False(t, retryable(shared.NewAPI("rejected")))
	assert.False(t, retryable(errors.New("unclassified")))
	assert.False(t, retryable(nil))
}

func TestWrap(t *testing.T) {
	original := errors.New("original")

	assert.Nil(t, shared.Wrap(nil, "ctx"))
	assert.Equal(t, original, shared.Wrap(original, ""))

	wrapped := shared.Wrap(original, "loading")
	require.NotNil(t, wrapped)
	assert.Equal(t, "loading: original", wrapped.Error())
	assert.True(t, errors.Is(wrapped, original))
}

func TestWrapf(t *testing.T) {
	original := errors.New("original")
	wrapped := shared.Wrapf(original, "task %s", "t1")
	require.NotNil(t, wrapped)
	assert.Equal(t, "task t1: original", wrapped.Error())
	assert.True(t, errors.Is(wrapped, original))
}
