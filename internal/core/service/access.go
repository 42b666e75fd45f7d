package service

import (
	"context"
	"fmt"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// CanAccess is the branch isolation rule. Wildcard principals reach every
// branch. Everyone else needs the permission, and must either sit in the admin
// branch or share the resource's branch.
func CanAccess(p *domain.Principal, resourceBranch domain.Branch, perm domain.Permission) bool {
	if p == nil {
		return false
	}
	if p.IsWildcard() {
		return true
	}
	if !p.Has(perm) {
		return false
	}
	return p.Branch == domain.BranchAdmin || p.Branch == resourceBranch
}

// crossesSilo reports whether touching a record of resourceBranch would take p
// outside its own branch.
func crossesSilo(p *domain.Principal, resourceBranch domain.Branch) bool {
	if p.IsWildcard() || p.Branch == domain.BranchAdmin {
		return false
	}
	return p.Branch != resourceBranch
}

// AccessEnforcer applies CanAccess to concrete records and audits denials.
type AccessEnforcer struct {
	audit *Auditor
}

func NewAccessEnforcer(audit *Auditor) *AccessEnforcer {
	return &AccessEnforcer{audit: audit}
}

// Target identifies the record an access check is about.
type Target struct {
	Resource domain.Resource
	ID       string
	Branch   domain.Branch
	// Section is set when the check guards a client sub-document.
	Section domain.ClientSection
}

// Authorize returns nil when p may perform action on target. Silo crossings
// return ErrBranchViolation and are audited as such; other denials return
// ErrForbidden.
func (e *AccessEnforcer) Authorize(ctx context.Context, p *domain.Principal, target Target, action domain.Action) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}

	perm, ok := domain.PermissionFor(target.Resource, target.Branch, action)
	if !ok {
		e.deny(ctx, domain.AuditAccessDenied, p, target, "", "unknown_resource_branch")
		return fmt.Errorf("%s %s in branch %q: %w", action, target.Resource, target.Branch, domain.ErrForbidden)
	}
	if CanAccess(p, target.Branch, perm) {
		return nil
	}

	if crossesSilo(p, target.Branch) {
		e.deny(ctx, domain.AuditBranchViolation, p, target, perm, "cross_branch_access")
		return fmt.Errorf("%s %s %s: %w", action, target.Resource, target.ID, domain.ErrBranchViolation)
	}
	e.deny(ctx, domain.AuditAccessDenied, p, target, perm, "missing_permission")
	return fmt.Errorf("%s %s %s requires %s: %w", action, target.Resource, target.ID, perm, domain.ErrForbidden)
}

func (e *AccessEnforcer) deny(ctx context.Context, t domain.AuditEventType, p *domain.Principal, target Target, perm domain.Permission, reason string) {
	if e.audit == nil {
		return
	}
	ev := actorEvent(t, p)
	ev.Permission = perm
	ev.Resource = string(target.Resource)
	if target.Section != "" {
		ev.Resource += "." + string(target.Section)
	}
	ev.ResourceID = target.ID
	ev.ResourceBranch = target.Branch
	ev.Reason = reason
	e.audit.Record(ctx, ev)
}

// ReadableBranches returns the branches whose records of resource p may view.
// List queries are narrowed to this scope instead of filtering after the fetch.
func ReadableBranches(p *domain.Principal, resource domain.Resource) []domain.Branch {
	return scopedBranches(p, resource, domain.ActionView)
}

// ManageableBranches is ReadableBranches for writes.
func ManageableBranches(p *domain.Principal, resource domain.Resource) []domain.Branch {
	return scopedBranches(p, resource, domain.ActionManage)
}

func scopedBranches(p *domain.Principal, resource domain.Resource, action domain.Action) []domain.Branch {
	var out []domain.Branch
	for _, b := range domain.AllBranches() {
		perm, ok := domain.PermissionFor(resource, b, action)
		if ok && CanAccess(p, b, perm) {
			out = append(out, b)
		}
	}
	return out
}

// OrgBranches returns the branches whose users and roles p may administer:
// every branch for wildcard and admin-branch principals, otherwise its own.
func OrgBranches(p *domain.Principal) []domain.Branch {
	if p == nil {
		return nil
	}
	if p.IsWildcard() || p.Branch == domain.BranchAdmin {
		return domain.AllBranches()
	}
	return []domain.Branch{p.Branch}
}

func containsBranch(bs []domain.Branch, b domain.Branch) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

// requireOrgBranch rejects administrative writes to users or roles outside the
// branches p administers, auditing the attempt as a silo violation.
func requireOrgBranch(ctx context.Context, audit *Auditor, p *domain.Principal, resource, id string, branch domain.Branch) error {
	if containsBranch(OrgBranches(p), branch) {
		return nil
	}
	ev := actorEvent(domain.AuditBranchViolation, p)
	ev.Resource = resource
	ev.ResourceID = id
	ev.ResourceBranch = branch
	ev.Reason = "cross_branch_write"
	audit.Record(ctx, ev)
	return fmt.Errorf("%s in %s: %w", resource, branch, domain.ErrBranchViolation)
}

// requireGrantable stops a principal from handing out permissions it does not
// hold. Only wildcard principals may grant the wildcard.
func requireGrantable(ctx context.Context, audit *Auditor, p *domain.Principal, resource string, perms domain.PermissionSet) error {
	return requireHeld(ctx, audit, p, resource, perms, "grant", "grant_exceeds_own_permissions")
}

// requireHeld fails on the first member of perms that p does not hold. The
// wildcard is only held by wildcard principals.
func requireHeld(ctx context.Context, audit *Auditor, p *domain.Principal, resource string, perms domain.PermissionSet, op, reason string) error {
	if p.IsWildcard() {
		return nil
	}
	for _, perm := range perms.Slice() {
		if perm == domain.Wildcard || !p.Has(perm) {
			ev := actorEvent(domain.AuditAccessDenied, p)
			ev.Resource = resource
			ev.Permission = perm
			ev.Reason = reason
			audit.Record(ctx, ev)
			return fmt.Errorf("%s %s: %w", op, perm, domain.ErrForbidden)
		}
	}
	return nil
}
