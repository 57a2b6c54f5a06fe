// Package handler holds the HTTP handlers behind the previewshare routes.
//
// Anonymous visitors only reach handleResolve, which answers every denial with
// the same 404 body so a caller cannot tell an unknown token from a
// revoked or expired one. Token and admin handlers expect the principal
// that the auth middleware stored in the request context and map domain
// errors to status codes in one place (handleServiceError).
package handler
