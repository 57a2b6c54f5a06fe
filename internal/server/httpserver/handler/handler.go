package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/resource"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// Config holds the services the handlers call.
type Config struct {
	Previews   *service.PreviewService
	Settings   *service.SettingsService
	Resources  *resource.Registry
	Authorizer service.Authorizer
	Logger     *slog.Logger

	// ReadyChecks run on GET /ready, keyed by dependency name.
	ReadyChecks map[string]ReadyCheck
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	previews  *service.PreviewService
	settings  *service.SettingsService
	resources *resource.Registry
	authz     service.Authorizer
	logger    *slog.Logger
	ready     map[string]ReadyCheck
	mux       *http.ServeMux
}

// New creates a new Handler with the given services.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		previews:  cfg.Previews,
		settings:  cfg.Settings,
		resources: cfg.Resources,
		authz:     cfg.Authorizer,
		logger:    cfg.Logger,
		ready:     cfg.ReadyChecks,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Anonymous resolution
	h.mux.HandleFunc("GET /preview/{token}", h.handleResolve)

	// API key endpoints
	h.mux.HandleFunc("POST /v1/tokens", h.handleIssue)
	h.mux.HandleFunc("POST /v1/tokens/revoke", h.handleRevoke)
	h.mux.HandleFunc("GET /v1/resources/{id}/token", h.handleLatest)

	// Admin endpoints
	h.mux.HandleFunc("GET /admin/v1/tokens", h.handleListTokens)
	h.mux.HandleFunc("POST /admin/v1/tokens/{id}/revoke", h.handleRevokeByID)
	h.mux.HandleFunc("GET /admin/v1/settings", h.handleGetSettings)
	h.mux.HandleFunc("POST /admin/v1/settings", h.handleUpdateSettings)
	h.mux.HandleFunc("GET /admin/v1/resources", h.handleListResources)
	h.mux.HandleFunc("PUT /admin/v1/resources/{id}", h.handlePutResource)
	h.mux.HandleFunc("DELETE /admin/v1/resources/{id}", h.handleDeleteResource)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "code", de.Code, "error", err)
			h.writeError(w, r, status, de.Code, de.Message, nil)
			return
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	// Generic internal error
	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch {
	case code == domain.ErrStorageUnavailable.Code:
		return http.StatusServiceUnavailable
	case code == domain.ErrInvalidState.Code:
		return http.StatusUnprocessableEntity
	case code == domain.ErrPreviewInvalid.Code:
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"), strings.HasSuffix(code, "-4042"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "PS-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument.WithDetails("invalid request body: " + err.Error())
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument.WithDetails(name + " must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithDetails(name + " must be an integer")
	}
	return n, nil
}
