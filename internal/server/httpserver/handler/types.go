package handler

import (
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ResolveResponse is the response body for GET /preview/{token}.
type ResolveResponse struct {
	ResourceID int64 `json:"resource_id"`
}

// IssueTokenRequest is the request body for POST /v1/tokens.
type IssueTokenRequest struct {
	ResourceID int64 `json:"resource_id"`
	TTLHours   *int  `json:"ttl_hours,omitempty"`
}

// IssueTokenResponse is the response body for POST /v1/tokens.
// Token is only ever returned here.
type IssueTokenResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	URL        string `json:"url"`
	ResourceID int64  `json:"resource_id"`
	ExpiresAt  int64  `json:"expires_at"`
	Replaced   int    `json:"replaced"`
}

// RevokeTokenRequest is the request body for POST /v1/tokens/revoke.
type RevokeTokenRequest struct {
	Token string `json:"token"`
}

// RevokeResponse reports whether a revocation changed anything.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// Token statuses in API responses.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// TokenResponse represents token metadata in API responses.
type TokenResponse struct {
	ID            string `json:"id"`
	ResourceID    int64  `json:"resource_id"`
	ResourceTitle string `json:"resource_title,omitempty"`
	IssuerID      string `json:"issuer_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
	Revoked       bool   `json:"revoked"`
	Status        string `json:"status"`
}

// ListTokensResponse is the response body for GET /admin/v1/tokens.
type ListTokensResponse struct {
	Items   []TokenResponse `json:"items"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// DeletedResourceTitle labels tokens whose resource no longer exists.
const DeletedResourceTitle = "(deleted)"

// newTokenResponse converts a record, deriving its status at now.
func newTokenResponse(rec *domain.TokenRecord, now time.Time) TokenResponse {
	status := StatusActive
	switch rec.DenialAt(now) {
	case domain.DenialRevoked:
		status = StatusRevoked
	case domain.DenialExpired:
		status = StatusExpired
	}
	return TokenResponse{
		ID:         rec.ID,
		ResourceID: rec.ResourceID,
		IssuerID:   rec.IssuerID,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
		Revoked:    rec.Revoked,
		Status:     status,
	}
}
