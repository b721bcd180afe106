// Package resilience provides reliability and fault tolerance patterns for the application.
// Its subpackages wrap the external LLM and geocoder calls:
//
//   - circuitbreaker: fail-closed circuit breakers (Claude, OpenAI, location batch calls;
//     feed fetching does not use one)
//   - ratelimit: per-service token-bucket rate limiters with a bounded wait
//   - retry: retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("my-service"))
//	err := cb.Execute(func() error {
//	    return callExternalService()
//	})
//
//	retryConfig := retry.EnrichmentConfig()
//	err = retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
