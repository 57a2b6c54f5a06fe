// Package logger builds the server's structured logger.
//
// New returns a *slog.Logger writing JSON or text. Every record passes
// through two layers:
//
//   - redaction: raw preview tokens (pvt_...) are partially masked wherever
//     they appear in a string value, and values under credential-like keys
//     (password, secret, api_key, ...) are replaced entirely
//   - request context: request_id and principal_id stored in the context
//     by the HTTP middleware are attached to records logged with the
//     *Context methods
//
// The level is process-wide and can be changed at runtime by SetLevel.
package logger
