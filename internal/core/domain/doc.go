// Package domain defines the core domain models for PreviewShare.
//
// Domain models are pure value objects without IO dependencies or
// framework coupling. This package contains:
//
//   - TokenRecord: persisted metadata of an issued preview token
//   - Resource: the protected content record a token grants access to
//   - Principal: the authenticated requester issuing or revoking tokens
//   - Settings: runtime tunables (default TTL, logging, caching, reissue)
//   - ResourceEvent: notification that a resource changed or was deleted
//   - Errors: domain error codes
package domain
