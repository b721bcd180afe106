// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Performance profiling and debugging
//
// Subpackages:
//   - metrics: Prometheus metrics registry and recorders
//   - slo: service level objective gauges, updated once per ingestion cycle
//   - tracing: OpenTelemetry tracer shared across the ingestion pipeline and API server
//
// Example usage:
//
//	import "threatfeed/internal/observability/metrics"
//
//	metrics.RecordFeedFetchSuccess(sourceID, 10, duration)
package observability
