package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
)

func TestClientHandler_List_PageParams(t *testing.T) {
	e := newEcho()
	handler := NewClientHandler(&stubClientService{
		listFn: func(_ context.Context, _ *domain.Principal, limit, offset int64) ([]*domain.Client, error) {
			if limit != 20 || offset != 40 {
				t.Fatalf("unexpected page %d/%d", limit, offset)
			}
			return []*domain.Client{{ID: "c1", Name: "Acme", Branch: domain.BranchWebDev}}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/clients?limit=20&offset=40", nil), rec)
	withPrincipal(c, domain.BranchWebDev, domain.PermWebViewClients)

	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || len(got) != 1 {
		t.Fatalf("unexpected body %s: %v", rec.Body.String(), err)
	}
}

func TestClientHandler_List_BadPage(t *testing.T) {
	e := newEcho()
	handler := NewClientHandler(&stubClientService{})
	for _, q := range []string{"limit=abc", "offset=-1"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/clients?"+q, nil), httptest.NewRecorder())
		withPrincipal(c, domain.BranchWebDev, domain.PermWebViewClients)
		if err := handler.List(c); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", q, err)
		}
	}
}

func TestClientHandler_Update_BuildsSectionPatch(t *testing.T) {
	e := newEcho()
	handler := NewClientHandler(&stubClientService{
		updateFn: func(_ context.Context, _ *domain.Principal, id string, patch domain.ClientPatch) (*domain.Client, error) {
			if id != "c1" || patch.WebData == nil || patch.WebData.Domain != "acme.test" || patch.AdminData != nil {
				t.Fatalf("unexpected patch %+v", patch)
			}
			return &domain.Client{ID: id, Branch: domain.BranchWebDev, WebData: patch.WebData}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPatch, "/clients/c1", strings.NewReader(`{"web_data":{"domain":"acme.test"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	withPrincipal(c, domain.BranchWebDev, domain.PermWebManageClients)

	if err := handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPermissionHandler_Manifest(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/permissions/manifest", nil), rec)

	if err := NewPermissionHandler().Manifest(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp manifestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Version != domain.CatalogVersion || len(resp.Permissions) != len(domain.Catalog().All()) {
		t.Fatalf("unexpected manifest %+v", resp)
	}
	if len(resp.Namespaces["web"]) == 0 {
		t.Fatalf("namespaces missing")
	}
}

func TestHealthDependencies_Readiness(t *testing.T) {
	e := newEcho()
	handler := NewHealthDependenciesHandler(map[string]Pinger{
		"mongodb": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	if err := handler.Readiness(e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Dependencies["mongodb"].Status != "ok" || resp.Dependencies["redis"].Status != "unhealthy" {
		t.Fatalf("unexpected dependencies %+v", resp.Dependencies)
	}
}
