package domain

import "time"

// Role is a named permission set scoped to one branch.
type Role struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Branch       Branch       `json:"branch"`
	Permissions  []Permission `json:"permissions"`
	IsSystemRole bool         `json:"is_system_role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PermissionSet returns the role's catalog permissions. Stored values that are
// no longer in the catalog are dropped and reported.
func (r *Role) PermissionSet() (PermissionSet, []string) {
	raw := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		raw[i] = string(p)
	}
	return NewPermissionSet(raw...)
}

// Seeded system role names.
const (
	RoleSuperAdmin = "Super Admin"
	RoleWebLead    = "Web Lead"
	RoleCyberLead  = "Cyber Lead"
)
