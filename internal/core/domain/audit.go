package domain

import (
	"slices"
	"time"
)

// AuditEventType tags a security-relevant event.
type AuditEventType string

const (
	AuditLoginSuccess      AuditEventType = "login_success"
	AuditLoginFailed       AuditEventType = "login_failed"
	AuditLoginRateLimited  AuditEventType = "login_rate_limited"
	AuditLogout            AuditEventType = "logout"
	AuditSessionRejected   AuditEventType = "session_rejected"
	AuditAccessDenied      AuditEventType = "access_denied"
	AuditBranchViolation   AuditEventType = "branch_violation"
	AuditRoleChanged       AuditEventType = "role_changed"
	AuditUserStatusChanged AuditEventType = "user_status_changed"
	AuditUserProvisioned   AuditEventType = "user_provisioned"
	AuditSystemError       AuditEventType = "system_error"
)

// AuditEvent is one entry in the security audit trail.
type AuditEvent struct {
	ID             string         `json:"id"`
	Type           AuditEventType `json:"type"`
	At             time.Time      `json:"at"`
	ActorID        string         `json:"actor_id,omitempty"`
	Username       string         `json:"username,omitempty"`
	Branch         Branch         `json:"branch,omitempty"`
	IP             string         `json:"ip,omitempty"`
	Permission     Permission     `json:"permission,omitempty"`
	Resource       string         `json:"resource,omitempty"`
	ResourceID     string         `json:"resource_id,omitempty"`
	ResourceBranch Branch         `json:"resource_branch,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// AuditFilter selects audit events. Unless AllBranches is set, only events
// whose actor branch is in Branches are returned, and an event naming a
// resource branch must name one of Branches too. An empty Branches with
// AllBranches unset matches nothing.
type AuditFilter struct {
	Type        AuditEventType
	Branches    []Branch
	AllBranches bool
	Limit       int64
}

// Matches reports whether e falls inside the filter.
func (f AuditFilter) Matches(e *AuditEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.AllBranches {
		return true
	}
	if !slices.Contains(f.Branches, e.Branch) {
		return false
	}
	return e.ResourceBranch == "" || slices.Contains(f.Branches, e.ResourceBranch)
}
