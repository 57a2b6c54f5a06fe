package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

func TestRoleAuthorizer(t *testing.T) {
	res := &domain.Resource{ID: 42, State: domain.StateDraft, OwnerID: "alice", Editors: []string{"bob"}}
	admin := domain.Principal{ID: "root", Role: domain.RoleAdmin}

	tests := []struct {
		name string
		p    domain.Principal
		res  *domain.Resource
		ok   bool
	}{
		{"owner", domain.Principal{ID: "alice", Role: domain.RoleEditor}, res, true},
		{"editor", domain.Principal{ID: "bob", Role: domain.RoleEditor}, res, true},
		{"stranger", domain.Principal{ID: "eve", Role: domain.RoleEditor}, res, false},
		{"anonymous", domain.Principal{}, res, false},
		{"admin", admin, res, true},
		{"admin missing resource", admin, nil, true},
		{"editor missing resource", domain.Principal{ID: "alice", Role: domain.RoleEditor}, nil, false},
		{"unknown role", domain.Principal{ID: "alice", Role: "viewer"}, res, false},
	}

	a := NewRoleAuthorizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), tt.p, 42, tt.res)
			if tt.ok && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("Authorize() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(domain.Principal{ID: "root", Role: domain.RoleAdmin}); err != nil {
		t.Errorf("RequireAdmin(admin) = %v", err)
	}
	if err := RequireAdmin(domain.Principal{ID: "bob", Role: domain.RoleEditor}); !errors.Is(err, domain.ErrAdminRequired) {
		t.Errorf("RequireAdmin(editor) = %v", err)
	}
}
