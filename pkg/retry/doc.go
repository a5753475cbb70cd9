// Package retry provides exponential backoff with optional jitter for
// long-running batch work against flaky upstream services.
//
// A Policy is a pure description of the backoff curve; Do and Run execute a
// work unit under a policy, deciding between retry and propagation with a
// caller-supplied predicate. The suspension primitive is pluggable so the
// same attempt loop serves both blocking and context-aware callers.
//
// Basic usage:
//
//	resp, err := retry.Do(ctx, retry.DefaultPolicy(), func(ctx context.Context) (*Response, error) {
//	    return client.Fetch(ctx, req)
//	}, retry.Options{
//	    Retryable: shared.RetryableCategories(shared.CategoryNetwork, shared.CategoryRateLimit),
//	    OnRetry: func(attempt int, delay time.Duration, err error) {
//	        log.Warn("retrying", "attempt", attempt, "delay", delay, "error", err)
//	    },
//	})
package retry
