// Package authz decides who may manage previews of a resource.
package authz

import (
	"context"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// RoleAuthorizer grants admins every resource and editors the resources
// they own or edit.
type RoleAuthorizer struct{}

// NewRoleAuthorizer creates a RoleAuthorizer.
func NewRoleAuthorizer() RoleAuthorizer {
	return RoleAuthorizer{}
}

// Authorize returns domain.ErrUnauthorized unless p may manage previews of
// the resource. A missing resource (res == nil) is reported the same way
// to non-admins.
func (RoleAuthorizer) Authorize(_ context.Context, p domain.Principal, _ int64, res *domain.Resource) error {
	switch {
	case p.Anonymous():
		return domain.ErrUnauthorized
	case p.IsAdmin():
		return nil
	case p.Role == domain.RoleEditor && res != nil && res.Editable(p.ID):
		return nil
	default:
		return domain.ErrUnauthorized
	}
}

// RequireAdmin returns domain.ErrAdminRequired unless p is an admin.
func RequireAdmin(p domain.Principal) error {
	if p.Anonymous() || !p.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}
