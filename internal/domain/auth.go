package domain

import "time"

// Role enumerates operator roles.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleAgent      Role = "AGENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

// User is an operator account. Super admins have no organization.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	OrgID        *string
	CreatedAt    time.Time
}

// Principal is the authenticated requester acting on the core.
type Principal struct {
	UserID string
	Email  string
	Role   Role
	OrgID  *string
}

// CanAccessOrg reports whether the principal may act inside orgID.
func (p Principal) CanAccessOrg(orgID string) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.OrgID != nil && *p.OrgID == orgID
}
