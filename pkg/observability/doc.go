// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for CareBridge services.
//
// Logging is structured JSON over stdlib log/slog. Request-scoped fields
// (request ID, principal ID, tenant ID) travel through context.Context and
// are attached by FromContext, so authorization denials and isolation
// anomalies always carry enough detail to investigate.
package observability
