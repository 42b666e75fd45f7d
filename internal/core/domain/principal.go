package domain

import "time"

// Principal is the request-scoped identity built from freshly loaded user and
// role records. It is never cached across requests.
type Principal struct {
	UserID           string
	Username         string
	RoleID           string
	RoleName         string
	Branch           Branch
	Permissions      PermissionSet
	SessionID        string
	SessionExpiresAt time.Time
}

// IsWildcard reports whether the principal holds the wildcard permission.
func (p *Principal) IsWildcard() bool {
	return p != nil && p.Permissions.IsWildcard()
}

// Has reports whether the principal is granted p, either exactly or through
// the wildcard. A permission outside the catalog is never granted.
func (p *Principal) Has(perm Permission) bool {
	if p == nil || !catalog.Contains(perm) {
		return false
	}
	return p.Permissions.IsWildcard() || p.Permissions.Has(perm)
}

func (p *Principal) HasAll(perms ...Permission) bool {
	for _, perm := range perms {
		if !p.Has(perm) {
			return false
		}
	}
	return true
}

func (p *Principal) HasAny(perms ...Permission) bool {
	for _, perm := range perms {
		if p.Has(perm) {
			return true
		}
	}
	return false
}
