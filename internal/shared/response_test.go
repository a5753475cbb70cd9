package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppcbatch/internal/shared"
)

func TestInterpretDataField(t *testing.T) {
	data, err := shared.Interpret(map[string]any{
		"data": map[string]any{"x": float64(1)},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, data)
}

func TestInterpretPassthrough(t *testing.T) {
	payload := map[string]any{"organic": []any{}, "credits": float64(3)}
	data, err := shared.Interpret(payload, true)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestInterpretRateLimitByCode(t *testing.T) {
	_, err := shared.Interpret(map[string]any{
		"error": map[string]any{
			"code":        "RATE_LIMIT",
			"message":     "Too many requests",
			"retry_after": float64(120),
		},
	}, true)
	require.Error(t, err)

	e, ok := shared.Classified(err)
	require.True(t, ok)
	assert.Equal(t, shared.CategoryRateLimit, e.Category)
	assert.Equal(t, "Too many requests", e.Message)
	assert.Equal(t, 120, e.RetryAfter)
}

func TestInterpretRateLimitByMessage(t *testing.T) {
	_, err := shared.Interpret(map[string]any{
		"error": map[string]any{
			"code":    "SOMETHING_ELSE",
			"message": "hit the RATE_LIMIT for this plan",
		},
	}, true)
	require.Error(t, err)

	e, ok := shared.Classified(err)
	require.True(t, ok)
	assert.Equal(t, shared.CategoryRateLimit, e.Category)
	assert.Equal(t, shared.DefaultRetryAfter, e.RetryAfter)
}

func TestInterpretAPIError(t *testing.T) {
	errObj := map[string]any{"code": "INVALID_FIELD", "message": "bad payload"}
	_, err := shared.Interpret(map[string]any{"error": errObj}, true)
	require.Error(t, err)

	e, ok := shared.Classified(err)
	require.True(t, ok)
	assert.Equal(t, shared.CategoryAPI, e.Category)
	assert.Equal(t, "bad payload", e.Message)
	assert.Equal(t, errObj, e.Context)
}

func TestInterpretAPIErrorSuppressed(t *testing.T) {
	data, err := shared.Interpret(map[string]any{
		"error": map[string]any{"code": "INVALID_FIELD", "message": "bad payload"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, data)
}

func TestInterpretRateLimitNotSuppressed(t *testing.T) {
	// rate limits surface even in best-effort mode
	_, err := shared.Interpret(map[string]any{
		"error": map[string]any{"code": "RATE_LIMIT", "message": "Too many requests"},
	}, false)
	require.Error(t, err)
	assert.Equal(t, shared.CategoryRateLimit, shared.CategoryOf(err))
}

func TestInterpretMalformedErrorObject(t *testing.T) {
	_, err := shared.Interpret(map[string]any{"error": "oops"}, true)
	require.Error(t, err)

	e, ok := shared.Classified(err)
	require.True(t, ok)
	assert.Equal(t, shared.CategoryAPI, e.Category)
	assert.Equal(t, "Unknown API error", e.Message)
}
