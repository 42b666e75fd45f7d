package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

var testCookies = CookieConfig{SessionName: "ops_session", CSRFName: "ops_csrf", Secure: true}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	expires := time.Now().Add(8 * time.Hour).UTC()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			if in.Identifier != "alice@example.com" || in.Password != "secret-pass" {
				t.Fatalf("unexpected args: %+v", in)
			}
			if in.ClientIP != "10.1.2.3" {
				t.Fatalf("unexpected client ip %q", in.ClientIP)
			}
			return &ports.LoginResult{
				SessionToken:     "session-jwt",
				AntiForgeryToken: "csrf-token",
				ExpiresAt:        expires,
				Principal: &domain.Principal{
					UserID:      "u1",
					Username:    "alice",
					RoleName:    "Web Lead",
					Branch:      domain.BranchWebDev,
					Permissions: domain.PermissionSet{domain.PermWebViewClients: {}},
				},
			}, nil
		},
	}
	handler := NewAuthHandler(stub, testCookies)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"alice@example.com","password":"secret-pass"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	cookies := map[string]*http.Cookie{}
	for _, ck := range rec.Result().Cookies() {
		cookies[ck.Name] = ck
	}
	session, csrf := cookies["ops_session"], cookies["ops_csrf"]
	if session == nil || !session.HttpOnly || !session.Secure || session.Value != "session-jwt" {
		t.Fatalf("unexpected session cookie %+v", session)
	}
	if csrf == nil || csrf.HttpOnly || csrf.Value != "csrf-token" {
		t.Fatalf("anti-forgery cookie must be readable by script: %+v", csrf)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	principal, ok := resp["principal"].(map[string]any)
	if !ok || principal["username"] != "alice" || principal["branch"] != "web_dev" {
		t.Fatalf("unexpected principal payload: %+v", resp["principal"])
	}
	if resp["csrf_token"] != "csrf-token" {
		t.Fatalf("csrf token missing from body")
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := map[string]error{
		"invalid credentials": domain.ErrInvalidCredentials,
		"rate limited":        domain.ErrRateLimited,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			handler := NewAuthHandler(&stubAuthService{
				loginFn: func(context.Context, ports.LoginInput) (*ports.LoginResult, error) { return nil, want },
			}, testCookies)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"bob","password":"bad"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			if err := handler.Login(e.NewContext(req, rec)); !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatalf("no cookies may be set on failure")
			}
		})
	}
}

func TestAuthHandler_Login_EmptyBodyIsInvalidCredentials(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}, testCookies)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if err := handler.Login(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Logout_ClearsCookies(t *testing.T) {
	e := newEcho()
	var loggedOut *domain.Principal
	handler := NewAuthHandler(&stubAuthService{
		logoutFn: func(_ context.Context, p *domain.Principal, _ string) error {
			loggedOut = p
			return nil
		},
	}, testCookies)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), rec)
	p := withPrincipal(c, domain.BranchWebDev)

	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if loggedOut != p {
		t.Fatalf("logout did not receive the request principal")
	}
	cleared := 0
	for _, ck := range rec.Result().Cookies() {
		if (ck.Name == "ops_session" || ck.Name == "ops_csrf") && ck.MaxAge < 0 && ck.Value == "" {
			cleared++
		}
	}
	if cleared != 2 {
		t.Fatalf("expected both cookies cleared, got %d", cleared)
	}
}

func TestAuthHandler_Me_RequiresPrincipal(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{}, testCookies)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), httptest.NewRecorder())

	if err := handler.Me(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
