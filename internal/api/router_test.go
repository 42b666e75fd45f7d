package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/api/middleware"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

const (
	viewerToken = "viewer-token"
	adminToken  = "admin-token"
)

// testCSRF is a well-formed token: 32 zero bytes, base64url encoded.
var testCSRF = strings.Repeat("A", 43)

type stubAuth struct {
	principals map[string]*domain.Principal
}

func (s *stubAuth) Login(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
	return nil, domain.ErrInvalidCredentials
}

func (s *stubAuth) Logout(context.Context, *domain.Principal, string) error { return nil }

func (s *stubAuth) ResolvePrincipal(_ context.Context, token string) (*domain.Principal, error) {
	if p, ok := s.principals[token]; ok {
		return p, nil
	}
	return nil, domain.ErrUnauthenticated
}

type stubRoles struct{ created int }

func (s *stubRoles) List(context.Context, *domain.Principal) ([]*domain.Role, error) {
	return []*domain.Role{}, nil
}

func (s *stubRoles) Get(context.Context, *domain.Principal, string) (*domain.Role, error) {
	return nil, domain.ErrNotFound
}

func (s *stubRoles) Create(_ context.Context, _ *domain.Principal, in ports.CreateRoleInput) (*domain.Role, error) {
	s.created++
	return &domain.Role{ID: "r1", Name: in.Name, Branch: in.Branch}, nil
}

func (s *stubRoles) Update(context.Context, *domain.Principal, string, ports.UpdateRoleInput) (*domain.Role, error) {
	return nil, domain.ErrNotFound
}

type discardAudit struct{}

func (discardAudit) Record(context.Context, domain.AuditEvent) {}

func principal(branch domain.Branch, perms ...string) *domain.Principal {
	set, _ := domain.NewPermissionSet(perms...)
	return &domain.Principal{UserID: "u-" + string(branch), Username: "tester", Branch: branch, Permissions: set}
}

func newTestRouter(roles *stubRoles) *echo.Echo {
	return NewRouter(Deps{
		Log: zerolog.New(io.Discard),
		Session: SessionSettings{
			CookieName: "ops_session",
			CSRFCookie: "ops_csrf",
			CSRFHeader: "X-CSRF-Token",
		},
		Throttle:   middleware.ThrottleConfig{Skipper: func(echo.Context) bool { return true }},
		Audit:      discardAudit{},
		Registerer: prometheus.NewRegistry(),
		Auth: &stubAuth{principals: map[string]*domain.Principal{
			viewerToken: principal(domain.BranchWebDev, "web_view_clients"),
			adminToken:  principal(domain.BranchAdmin, "*"),
		}},
		Roles: roles,
	})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	e := newTestRouter(&stubRoles{})

	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", rec.Code)
	}
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/nowhere", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", rec.Code)
	}
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		csrf     bool
		body     string
		wantCode int
	}{
		{"no session", http.MethodGet, "/roles", "", false, "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/roles", "forged", false, "", http.StatusUnauthorized},
		{"missing permission", http.MethodGet, "/roles", viewerToken, false, "", http.StatusForbidden},
		{"manifest denied", http.MethodGet, "/permissions/manifest", viewerToken, false, "", http.StatusForbidden},
		{"wildcard reads roles", http.MethodGet, "/roles", adminToken, false, "", http.StatusOK},
		{"wildcard reads manifest", http.MethodGet, "/permissions/manifest", adminToken, false, "", http.StatusOK},
		{"unsafe without csrf", http.MethodPost, "/roles", adminToken, false, `{"name":"Web Junior","branch":"web_dev","permissions":["web_view_clients"]}`, http.StatusForbidden},
		{"unsafe with csrf", http.MethodPost, "/roles", adminToken, true, `{"name":"Web Junior","branch":"web_dev","permissions":["web_view_clients"]}`, http.StatusCreated},
		{"me", http.MethodGet, "/auth/me", viewerToken, false, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestRouter(&stubRoles{})

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: "ops_session", Value: tt.token})
			}
			if tt.csrf {
				req.AddCookie(&http.Cookie{Name: "ops_csrf", Value: testCSRF})
				req.Header.Set("X-CSRF-Token", testCSRF)
			}

			if rec := serve(e, req); rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_ForbiddenDoesNotReachHandler(t *testing.T) {
	roles := &stubRoles{}
	e := newTestRouter(roles)

	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(`{"name":"Web Junior","branch":"web_dev","permissions":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "ops_session", Value: viewerToken})
	req.AddCookie(&http.Cookie{Name: "ops_csrf", Value: testCSRF})
	req.Header.Set("X-CSRF-Token", testCSRF)

	if rec := serve(e, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if roles.created != 0 {
		t.Fatalf("handler ran despite the gate denying")
	}
}
