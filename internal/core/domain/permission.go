package domain

import (
	"sort"
	"strings"
)

// Permission is an opaque capability string. Only members of the catalog are
// ever granted.
type Permission string

// Wildcard grants every catalog permission.
const Wildcard Permission = "*"

// CatalogVersion identifies the permission set shipped with this build.
const CatalogVersion = "2024.1"

const (
	PermViewDashboard     Permission = "sys_view_dashboard"
	PermViewUsers         Permission = "sys_view_users"
	PermManageUsers       Permission = "sys_manage_users"
	PermViewRoles         Permission = "sys_view_roles"
	PermManageRoles       Permission = "sys_manage_roles"
	PermViewPermissions   Permission = "sys_view_permissions"
	PermViewAudit         Permission = "sys_view_audit"
	PermManageSettings    Permission = "sys_manage_settings"
	PermSysViewClients    Permission = "sys_view_clients"
	PermSysManageClients  Permission = "sys_manage_clients"
	PermSysViewProjects   Permission = "sys_view_projects"
	PermSysManageProjects Permission = "sys_manage_projects"
	PermViewFinance       Permission = "sys_view_finance"
	PermManageFinance     Permission = "sys_manage_finance"

	PermWebViewClients     Permission = "web_view_clients"
	PermWebManageClients   Permission = "web_manage_clients"
	PermWebViewProjects    Permission = "web_view_projects"
	PermWebManageProjects  Permission = "web_manage_projects"
	PermWebManageContent   Permission = "web_manage_content"
	PermWebViewProposals   Permission = "web_view_proposals"
	PermWebManageProposals Permission = "web_manage_proposals"

	PermCyberViewClients       Permission = "cyber_view_clients"
	PermCyberManageClients     Permission = "cyber_manage_clients"
	PermCyberViewProjects      Permission = "cyber_view_projects"
	PermCyberManageProjects    Permission = "cyber_manage_projects"
	PermCyberViewAssessments   Permission = "cyber_view_assessments"
	PermCyberManageAssessments Permission = "cyber_manage_assessments"
)

// Namespace prefixes of catalog permissions.
const (
	NamespaceSystem = "sys"
	NamespaceWeb    = "web"
	NamespaceCyber  = "cyber"
)

// PermissionCatalog is the immutable set of known permissions. The zero value
// is not usable; obtain it with Catalog.
type PermissionCatalog struct {
	version string
	members map[Permission]struct{}
}

var catalog = newCatalog(CatalogVersion,
	PermViewDashboard, PermViewUsers, PermManageUsers, PermViewRoles, PermManageRoles,
	PermViewPermissions, PermViewAudit, PermManageSettings,
	PermSysViewClients, PermSysManageClients, PermSysViewProjects, PermSysManageProjects,
	PermViewFinance, PermManageFinance,

	PermWebViewClients, PermWebManageClients, PermWebViewProjects, PermWebManageProjects,
	PermWebManageContent, PermWebViewProposals, PermWebManageProposals,

	PermCyberViewClients, PermCyberManageClients, PermCyberViewProjects, PermCyberManageProjects,
	PermCyberViewAssessments, PermCyberManageAssessments,

	Wildcard,
)

func newCatalog(version string, perms ...Permission) PermissionCatalog {
	members := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		members[p] = struct{}{}
	}
	return PermissionCatalog{version: version, members: members}
}

// Catalog returns the process-wide permission catalog.
func Catalog() PermissionCatalog { return catalog }

func (c PermissionCatalog) Version() string { return c.version }

// Contains reports whether p is a catalog member. The wildcard is a member.
func (c PermissionCatalog) Contains(p Permission) bool {
	_, ok := c.members[p]
	return ok
}

// All returns a sorted copy of every catalog member.
func (c PermissionCatalog) All() []Permission {
	out := make([]Permission, 0, len(c.members))
	for p := range c.members {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

// Grouped returns catalog members keyed by namespace, wildcard excluded.
func (c PermissionCatalog) Grouped() map[string][]Permission {
	out := make(map[string][]Permission, 3)
	for p := range c.members {
		if p == Wildcard {
			continue
		}
		ns := p.Namespace()
		out[ns] = append(out[ns], p)
	}
	for ns := range out {
		sortPermissions(out[ns])
	}
	return out
}

// Namespace returns the prefix before the first underscore, or "" for the
// wildcard and malformed values.
func (p Permission) Namespace() string {
	if p == Wildcard {
		return ""
	}
	ns, _, ok := strings.Cut(string(p), "_")
	if !ok {
		return ""
	}
	return ns
}

func (p Permission) String() string { return string(p) }

// AllowedInBranch reports whether a role of branch b may carry p.
//
//	sys_*   any branch
//	web_*   web_dev, admin
//	cyber_* cyber_security, admin
//	*       admin only
func (p Permission) AllowedInBranch(b Branch) bool {
	if p == Wildcard {
		return b == BranchAdmin
	}
	switch p.Namespace() {
	case NamespaceSystem:
		return true
	case NamespaceWeb:
		return b == BranchWebDev || b == BranchAdmin
	case NamespaceCyber:
		return b == BranchCyberSecurity || b == BranchAdmin
	}
	return false
}

func sortPermissions(ps []Permission) {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
}

// PermissionSet is a set of catalog permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from raw strings, dropping anything outside the
// catalog. Dropped values are returned so callers can log or reject them.
func NewPermissionSet(raw ...string) (PermissionSet, []string) {
	set := make(PermissionSet, len(raw))
	var unknown []string
	for _, r := range raw {
		p := Permission(strings.TrimSpace(r))
		if !catalog.Contains(p) {
			unknown = append(unknown, r)
			continue
		}
		set[p] = struct{}{}
	}
	return set, unknown
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// IsWildcard reports whether the set carries the wildcard.
func (s PermissionSet) IsWildcard() bool { return s.Has(Wildcard) }

// Slice returns the members in sorted order.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

// Strings is Slice as plain strings, for persistence and claims.
func (s PermissionSet) Strings() []string {
	ps := s.Slice()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// Resource names a branch-tagged collection guarded by the isolation rules.
type Resource string

const (
	ResourceClients  Resource = "clients"
	ResourceProjects Resource = "projects"
)

// Action is what the caller wants to do with a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionManage Action = "manage"
)

var resourcePermissions = map[Resource]map[Branch]map[Action]Permission{
	ResourceClients: {
		BranchAdmin:         {ActionView: PermSysViewClients, ActionManage: PermSysManageClients},
		BranchWebDev:        {ActionView: PermWebViewClients, ActionManage: PermWebManageClients},
		BranchCyberSecurity: {ActionView: PermCyberViewClients, ActionManage: PermCyberManageClients},
	},
	ResourceProjects: {
		BranchAdmin:         {ActionView: PermSysViewProjects, ActionManage: PermSysManageProjects},
		BranchWebDev:        {ActionView: PermWebViewProjects, ActionManage: PermWebManageProjects},
		BranchCyberSecurity: {ActionView: PermCyberViewProjects, ActionManage: PermCyberManageProjects},
	},
}

// PermissionFor returns the permission guarding action on a resource record of
// the given branch. ok is false for unknown combinations.
func PermissionFor(resource Resource, branch Branch, action Action) (Permission, bool) {
	p, ok := resourcePermissions[resource][branch][action]
	return p, ok
}

// PermissionsFor returns the permissions guarding action on resource across
// every branch, in branch order.
func PermissionsFor(resource Resource, action Action) []Permission {
	out := make([]Permission, 0, 3)
	for _, b := range AllBranches() {
		if p, ok := PermissionFor(resource, b, action); ok {
			out = append(out, p)
		}
	}
	return out
}
