// Package api exposes the HTTP surface: tenant-scoped record endpoints,
// tenant administration, and the operator endpoints for isolation audits
// and breaker resets.
//
// Handlers are thin. Authorization, tenant filtering, phantom filtering,
// and breaker checks all live in the service layers; a handler parses the
// request, calls one service method, and maps the error taxonomy to HTTP
// status codes.
package api
