package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/core/domain"
)

func runGate(t *testing.T, mw echo.MiddlewareFunc, p *domain.Principal) (bool, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/roles", nil), httptest.NewRecorder())
	if p != nil {
		SetPrincipal(c, p)
	}
	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func principalWith(branch domain.Branch, perms ...domain.Permission) *domain.Principal {
	set := domain.PermissionSet{}
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &domain.Principal{UserID: "u1", Branch: branch, Permissions: set}
}

func TestGate_RequirePermission(t *testing.T) {
	gate := NewGate(&recordedEvents{}, zerolog.Nop())
	mw := gate.RequirePermission(domain.PermViewRoles)

	tests := []struct {
		name    string
		p       *domain.Principal
		wantErr error
	}{
		{"exact", principalWith(domain.BranchWebDev, domain.PermViewRoles), nil},
		{"wildcard", principalWith(domain.BranchAdmin, domain.Wildcard), nil},
		{"missing", principalWith(domain.BranchAdmin, domain.PermViewUsers), domain.ErrForbidden},
		{"prefix is not a match", principalWith(domain.BranchAdmin, "sys_view"), domain.ErrForbidden},
		{"no principal", nil, domain.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called, err := runGate(t, mw, tc.p)
			if tc.wantErr == nil {
				if err != nil || !called {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) || called {
				t.Fatalf("expected %v, got %v (called=%v)", tc.wantErr, err, called)
			}
		})
	}
}

func TestGate_UnknownPermissionNeverGranted(t *testing.T) {
	gate := NewGate(nil, zerolog.Nop())
	_, err := runGate(t, gate.RequirePermission("sys_launch_rockets"), principalWith(domain.BranchAdmin, domain.Wildcard))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("wildcard must not grant values outside the catalog, got %v", err)
	}
}

func TestGate_AllAndAny(t *testing.T) {
	audit := &recordedEvents{}
	gate := NewGate(audit, zerolog.Nop())
	dev := principalWith(domain.BranchWebDev, domain.PermWebViewClients)

	if _, err := runGate(t, gate.RequireAny(domain.PermSysViewClients, domain.PermWebViewClients, domain.PermCyberViewClients), dev); err != nil {
		t.Fatalf("any-of should pass: %v", err)
	}
	if _, err := runGate(t, gate.RequireAll(domain.PermWebViewClients, domain.PermWebManageClients), dev); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("all-of should deny: %v", err)
	}
	if len(audit.events) != 1 || audit.events[0].Type != domain.AuditAccessDenied {
		t.Fatalf("denial should be audited once, got %+v", audit.events)
	}
	if audit.events[0].Permission != "web_view_clients+web_manage_clients" {
		t.Fatalf("unexpected permission label %q", audit.events[0].Permission)
	}
}
