// Package resilience provides the retry and pacing helpers flowkit stages
// use around their own resources.
//
//   - Retry / RetryFunc: exponential backoff with jitter, used to retry a
//     stage's setup hook
//   - RateLimiter: a token bucket, used to pace pulls from unbounded sources
//
// The engine itself stays fail-fast: nothing here retries processing.
//
//	err := resilience.RetryFunc(ctx, resilience.DefaultRetryConfig(), func() error {
//	    return db.Ping(ctx)
//	})
package resilience
