// Package main provides the entry point for previewshare-server.
//
// The server hosts the preview token core behind a JSON HTTP API:
//
//   - GET /preview/{token} resolves a raw token (anonymous, rate limited)
//   - /v1 issues, revokes and inspects tokens (API key)
//   - /admin/v1 lists tokens, edits settings and manages resources (admin key)
//   - /health, /ready and /metrics for operations
//
// Usage:
//
//	previewshare-server [flags]
//	previewshare-server --config /etc/previewshare/server.yaml
//
// Configuration is read from the YAML file and PREVIEWSHARE_* variables.
// Editing the file, or sending SIGHUP, reloads the preview settings and the
// log level without a restart.
package main
