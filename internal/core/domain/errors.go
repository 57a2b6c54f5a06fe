package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form PS-<CATEGORY>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "PS-TOKN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsTransient reports whether err is a storage failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("PS-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("PS-ARG-1002", "missing required argument")
)

// ============================================================================
// Authorization Errors (AUTH)
// ============================================================================

var (
	// ErrAPIKeyMissing indicates no API key was provided.
	ErrAPIKeyMissing = NewDomainError("PS-AUTH-4010", "api key not provided")

	// ErrAPIKeyInvalid indicates the API key is unknown.
	ErrAPIKeyInvalid = NewDomainError("PS-AUTH-4011", "invalid api key")

	// ErrUnauthorized indicates the requester may not act on the resource.
	// It is returned regardless of whether the resource exists.
	ErrUnauthorized = NewDomainError("PS-AUTH-4030", "not allowed to manage previews for this resource")

	// ErrAdminRequired indicates the admin role is required.
	ErrAdminRequired = NewDomainError("PS-AUTH-4031", "admin role required")
)

// ============================================================================
// Resource Errors (RES)
// ============================================================================

var (
	// ErrResourceNotFound indicates the resource does not exist.
	ErrResourceNotFound = NewDomainError("PS-RES-4040", "resource not found")

	// ErrInvalidState indicates the resource is not in a previewable state.
	ErrInvalidState = NewDomainError("PS-RES-4220", "resource state does not allow previews")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenMalformed indicates the raw token format is invalid.
	ErrTokenMalformed = NewDomainError("PS-TOKN-4000", "malformed token")

	// ErrPreviewInvalid is the only denial ever shown to a preview visitor.
	ErrPreviewInvalid = NewDomainError("PS-TOKN-4010", "preview link is invalid or has expired")

	// ErrTokenNotFound indicates no matching token record exists.
	ErrTokenNotFound = NewDomainError("PS-TOKN-4040", "token not found")

	// ErrTokenExpired indicates the token has passed its expiry.
	ErrTokenExpired = NewDomainError("PS-TOKN-4041", "token expired")

	// ErrTokenRevoked indicates the token has been revoked.
	ErrTokenRevoked = NewDomainError("PS-TOKN-4042", "token revoked")

	// ErrTokenHashConflict indicates a hash collision among valid tokens.
	ErrTokenHashConflict = NewDomainError("PS-TOKN-4090", "token hash conflict")

	// ErrReissueConflict indicates a concurrent reissue won the race.
	// It never leaves the service layer.
	ErrReissueConflict = NewDomainError("PS-TOKN-4091", "concurrent reissue conflict")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("PS-SYS-5000", "internal server error")

	// ErrStorageError indicates a persistent storage failure.
	ErrStorageError = NewDomainError("PS-SYS-5001", "storage error")

	// ErrStorageUnavailable indicates a transient storage failure (timeout,
	// lost connection). Reads may be retried.
	ErrStorageUnavailable = NewDomainError("PS-SYS-5030", "storage unavailable")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("PS-SYS-4290", "too many requests")
)
