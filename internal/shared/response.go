package shared

import "strings"

// rate-limit error codes used by the upstream APIs
const codeRateLimit = "RATE_LIMIT"

// Interpret turns a raw API payload into its data or a classified failure.
//
// When the payload carries an "error" object, a rate-limit signal (code
// RATE_LIMIT or a message mentioning rate_limit) becomes a rate-limit error
// with the payload's retry_after hint. Any other error object becomes an API
// error carrying the object as context, unless raiseOnError is false, in
// which case an empty map is returned so best-effort batch runs can continue.
//
// Without an "error" object the "data" field is returned when present,
// otherwise the payload is passed through unchanged.
func Interpret(response map[string]any, raiseOnError bool) (any, error) {
	if raw, ok := response["error"]; ok {
		errObj, _ := raw.(map[string]any)

		message := "Unknown API error"
		if m, ok := stringField(errObj, "message"); ok && m != "" {
			message = m
		}
		code, _ := stringField(errObj, "code")

		if code == codeRateLimit || strings.Contains(strings.ToLower(message), "rate_limit") {
			return nil, NewRateLimit(message, intField(errObj, "retry_after", DefaultRetryAfter))
		}

		if raiseOnError {
			e := NewAPI(message)
			e.Context = errObj
			return nil, e
		}
		return map[string]any{}, nil
	}

	if data, ok := response["data"]; ok {
		return data, nil
	}
	return response, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// intField reads a numeric field, tolerating the float64 produced by
// encoding/json for all JSON numbers.
func intField(m map[string]any, key string, def int) int {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
