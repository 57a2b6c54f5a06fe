// Package service provides the preview token lifecycle services.
//
// Services contain the business logic and orchestrate operations on
// domain models. They define the ports for their dependencies (token
// store, resolution cache, resource repository, authorizer, settings),
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - PreviewService: issue, resolve, revoke and list preview tokens
//   - SettingsService: settings get/update passthrough
//   - Lifecycle policy: TTL resolution, reissue strategy, eligibility
//
// Services are safe for concurrent use. Reissue is serialized per
// resource in-process by a striped lock and across processes by the
// store's atomic ReplaceValid.
package service
