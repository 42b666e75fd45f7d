package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/domain"
)

func TestHTTPErrorHandler_Taxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"unauthenticated", fmt.Errorf("resolve: %w", domain.ErrUnauthenticated), http.StatusUnauthorized, "authentication required"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "too many login attempts, try again later"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "access denied"},
		{"branch violation", domain.ErrBranchViolation, http.StatusForbidden, "access denied"},
		{"system role", domain.ErrSystemRoleImmutable, http.StatusForbidden, "access denied"},
		{"validation", domain.ValidationError("name is required"), http.StatusUnprocessableEntity, "validation failed: name is required"},
		{"not found", fmt.Errorf("role x: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "already exists"},
		{"system", domain.SystemError("load role", errors.New("socket closed")), http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"), http.StatusMethodNotAllowed, "method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.New(io.Discard))

			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/roles", nil), rec)
			e.HTTPErrorHandler(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, body.Error)
			}
		})
	}
}

func TestHTTPErrorHandler_SystemErrorDoesNotLeakCause(t *testing.T) {
	var logs strings.Builder
	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.New(&logs))

	rec := httptest.NewRecorder()
	handler(domain.SystemError("find user", errors.New("mongo: server selection timeout")), e.NewContext(httptest.NewRequest(http.MethodGet, "/users", nil), rec))

	if strings.Contains(rec.Body.String(), "mongo") {
		t.Fatalf("response leaked the cause: %s", rec.Body.String())
	}
	if !strings.Contains(logs.String(), "server selection timeout") {
		t.Fatalf("cause was not logged: %s", logs.String())
	}
}

func TestHTTPErrorHandler_CountsBranchViolations(t *testing.T) {
	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.New(io.Discard))
	before := testutil.ToFloat64(metrics.BranchViolationsTotal)

	handler(domain.ErrForbidden, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	handler(fmt.Errorf("client c1: %w", domain.ErrBranchViolation), e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))

	if got := testutil.ToFloat64(metrics.BranchViolationsTotal) - before; got != 1 {
		t.Fatalf("expected one branch violation counted, got %v", got)
	}
}

func TestHTTPErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "done")

	NewHTTPErrorHandler(zerolog.New(io.Discard))(domain.ErrForbidden, c)

	if rec.Code != http.StatusOK || rec.Body.String() != "done" {
		t.Fatalf("committed response was overwritten: %d %q", rec.Code, rec.Body.String())
	}
}
