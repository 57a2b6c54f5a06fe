// Package httpserver provides the HTTP/HTTPS server for previewshare.
//
// This package implements the external API using stdlib net/http:
//
//   - Preview resolution: GET /preview/{token} (anonymous, rate limited)
//   - Token endpoints: /v1/tokens, /v1/tokens/revoke, /v1/resources/{id}/token
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Middleware chain: Recover, RequestID, Audit, then per group RateLimit,
// NetworkACL, Auth and RequireAdmin.
package httpserver
