package domain

import "strings"

// Branch is the organisational silo a user, role or business record belongs to.
type Branch string

const (
	BranchAdmin         Branch = "admin"
	BranchWebDev        Branch = "web_dev"
	BranchCyberSecurity Branch = "cyber_security"
)

// AllBranches returns the closed set of branches in a stable order.
func AllBranches() []Branch {
	return []Branch{BranchAdmin, BranchWebDev, BranchCyberSecurity}
}

// Valid reports whether b is one of the known branches.
func (b Branch) Valid() bool {
	switch b {
	case BranchAdmin, BranchWebDev, BranchCyberSecurity:
		return true
	}
	return false
}

func (b Branch) String() string { return string(b) }

// ParseBranch normalises s and returns the matching Branch.
func ParseBranch(s string) (Branch, error) {
	b := Branch(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", ValidationError("unknown branch %q", s)
	}
	return b, nil
}
