package logger

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	principalKey
)

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithPrincipalID stores the authenticated principal ID in ctx.
func WithPrincipalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

// PrincipalIDFromContext returns the principal ID, or "".
func PrincipalIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(principalKey).(string)
	return id
}

// contextHandler adds the request and principal IDs found in the record's
// context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := RequestIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("request_id", id))
		}
		if id := PrincipalIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("principal_id", id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
