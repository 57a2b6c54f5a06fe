package domain

// Role is the coarse permission level of a principal.
type Role string

// Roles.
const (
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Principal is an authenticated requester.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Anonymous reports whether no principal is attached.
func (p Principal) Anonymous() bool {
	return p.ID == ""
}
