package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/branchdesk/opshub/internal/core/domain"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name     string
		p        *domain.Principal
		branch   domain.Branch
		perm     domain.Permission
		expected bool
	}{
		{"wildcard reaches any branch", principal(domain.BranchAdmin, domain.Wildcard), domain.BranchCyberSecurity, domain.PermCyberManageClients, true},
		{"wildcard outside admin branch", principal(domain.BranchWebDev, domain.Wildcard), domain.BranchCyberSecurity, domain.PermCyberViewClients, true},
		{"admin branch with permission", principal(domain.BranchAdmin, domain.PermWebViewClients), domain.BranchWebDev, domain.PermWebViewClients, true},
		{"admin branch without permission", principal(domain.BranchAdmin, domain.PermSysViewClients), domain.BranchWebDev, domain.PermWebViewClients, false},
		{"own branch with permission", principal(domain.BranchWebDev, domain.PermWebViewClients), domain.BranchWebDev, domain.PermWebViewClients, true},
		{"own branch without permission", principal(domain.BranchWebDev, domain.PermWebViewClients), domain.BranchWebDev, domain.PermWebManageClients, false},
		{"foreign branch even with permission", principal(domain.BranchWebDev, domain.PermCyberViewClients), domain.BranchCyberSecurity, domain.PermCyberViewClients, false},
		{"nil principal", nil, domain.BranchWebDev, domain.PermWebViewClients, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccess(tc.p, tc.branch, tc.perm); got != tc.expected {
				t.Fatalf("CanAccess = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestAccessEnforcer_Authorize(t *testing.T) {
	audit, sink := newTestAuditor()
	enforcer := NewAccessEnforcer(audit)
	ctx := context.Background()

	webDev := principal(domain.BranchWebDev, domain.PermWebViewClients, domain.PermWebManageClients)
	cyberClient := Target{Resource: domain.ResourceClients, ID: "c1", Branch: domain.BranchCyberSecurity}
	webClient := Target{Resource: domain.ResourceClients, ID: "c2", Branch: domain.BranchWebDev}

	err := enforcer.Authorize(ctx, webDev, cyberClient, domain.ActionView)
	if !errors.Is(err, domain.ErrBranchViolation) || !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected branch violation, got %v", err)
	}
	if ev := sink.last(); ev.Type != domain.AuditBranchViolation || ev.ResourceBranch != domain.BranchCyberSecurity {
		t.Fatalf("expected branch_violation audit, got %+v", ev)
	}

	if err := enforcer.Authorize(ctx, webDev, webClient, domain.ActionManage); err != nil {
		t.Fatalf("expected access to own branch, got %v", err)
	}

	viewer := principal(domain.BranchWebDev, domain.PermWebViewClients)
	err = enforcer.Authorize(ctx, viewer, webClient, domain.ActionManage)
	if !errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrBranchViolation) {
		t.Fatalf("expected plain forbidden, got %v", err)
	}
	if ev := sink.last(); ev.Type != domain.AuditAccessDenied || ev.Permission != domain.PermWebManageClients {
		t.Fatalf("expected access_denied audit naming the permission, got %+v", ev)
	}

	if err := enforcer.Authorize(ctx, nil, webClient, domain.ActionView); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for nil principal, got %v", err)
	}
}

func TestReadableBranches(t *testing.T) {
	tests := []struct {
		name string
		p    *domain.Principal
		want []domain.Branch
	}{
		{"wildcard", principal(domain.BranchAdmin, domain.Wildcard), domain.AllBranches()},
		{"web viewer", principal(domain.BranchWebDev, domain.PermWebViewClients), []domain.Branch{domain.BranchWebDev}},
		{"web viewer holding cyber permission", principal(domain.BranchWebDev, domain.PermWebViewClients, domain.PermCyberViewClients), []domain.Branch{domain.BranchWebDev}},
		{"admin with sys and cyber view", principal(domain.BranchAdmin, domain.PermSysViewClients, domain.PermCyberViewClients), []domain.Branch{domain.BranchAdmin, domain.BranchCyberSecurity}},
		{"no permissions", principal(domain.BranchCyberSecurity), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ReadableBranches(tc.p, domain.ResourceClients)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("ReadableBranches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrgBranches(t *testing.T) {
	if got := OrgBranches(principal(domain.BranchAdmin)); len(got) != 3 {
		t.Fatalf("admin branch should administer every branch, got %v", got)
	}
	if got := OrgBranches(principal(domain.BranchCyberSecurity)); !slices.Equal(got, []domain.Branch{domain.BranchCyberSecurity}) {
		t.Fatalf("expected own branch only, got %v", got)
	}
	if got := OrgBranches(nil); got != nil {
		t.Fatalf("expected nil for nil principal, got %v", got)
	}
}
