package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/api/middleware"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

type stubAuthService struct {
	loginFn  func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	logoutFn func(ctx context.Context, p *domain.Principal, ip string) error
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Logout(ctx context.Context, p *domain.Principal, ip string) error {
	return s.logoutFn(ctx, p, ip)
}

func (s *stubAuthService) ResolvePrincipal(context.Context, string) (*domain.Principal, error) {
	return nil, domain.ErrUnauthenticated
}

type stubRoleService struct {
	createFn func(ctx context.Context, p *domain.Principal, in ports.CreateRoleInput) (*domain.Role, error)
	updateFn func(ctx context.Context, p *domain.Principal, id string, in ports.UpdateRoleInput) (*domain.Role, error)
}

func (s *stubRoleService) List(context.Context, *domain.Principal) ([]*domain.Role, error) {
	return []*domain.Role{}, nil
}

func (s *stubRoleService) Get(context.Context, *domain.Principal, string) (*domain.Role, error) {
	return nil, domain.ErrNotFound
}

func (s *stubRoleService) Create(ctx context.Context, p *domain.Principal, in ports.CreateRoleInput) (*domain.Role, error) {
	return s.createFn(ctx, p, in)
}

func (s *stubRoleService) Update(ctx context.Context, p *domain.Principal, id string, in ports.UpdateRoleInput) (*domain.Role, error) {
	return s.updateFn(ctx, p, id, in)
}

type stubClientService struct {
	listFn   func(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Client, error)
	updateFn func(ctx context.Context, p *domain.Principal, id string, patch domain.ClientPatch) (*domain.Client, error)
}

func (s *stubClientService) List(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Client, error) {
	return s.listFn(ctx, p, limit, offset)
}

func (s *stubClientService) Get(context.Context, *domain.Principal, string) (*domain.Client, error) {
	return nil, domain.ErrNotFound
}

func (s *stubClientService) Update(ctx context.Context, p *domain.Principal, id string, patch domain.ClientPatch) (*domain.Client, error) {
	return s.updateFn(ctx, p, id, patch)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func withPrincipal(c echo.Context, branch domain.Branch, perms ...domain.Permission) *domain.Principal {
	set := domain.PermissionSet{}
	for _, p := range perms {
		set[p] = struct{}{}
	}
	p := &domain.Principal{UserID: "u1", Username: "alice", RoleName: "Web Lead", Branch: branch, Permissions: set}
	middleware.SetPrincipal(c, p)
	return p
}
