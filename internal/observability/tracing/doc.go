// Package tracing provides the OpenTelemetry tracer shared by the ingestion
// pipeline and the API server.
//
// The pipeline orchestrator starts a span per cycle and per entry; the API
// server wraps its mux with Middleware for request-scoped spans. No exporter
// is configured here — wiring an OTLP/Jaeger exporter onto the global
// TracerProvider is a deployment-time concern, not this package's.
package tracing
