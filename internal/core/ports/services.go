package ports

import (
	"context"
	"time"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// LoginInput carries the login form plus the request origin used for the
// attempt limiter and audit trail.
type LoginInput struct {
	Identifier string
	Password   string
	ClientIP   string
	UserAgent  string
}

// LoginResult is the token pair handed to the client after a successful login.
type LoginResult struct {
	SessionToken     string
	AntiForgeryToken string
	ExpiresAt        time.Time
	Principal        *domain.Principal
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, p *domain.Principal, clientIP string) error
	// ResolvePrincipal verifies a session token and rebuilds the principal from
	// the stores. It never serves a cached principal.
	ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error)
}

type CreateRoleInput struct {
	Name        string
	Branch      domain.Branch
	Permissions []string
}

type UpdateRoleInput struct {
	Name        *string
	Permissions []string // nil leaves permissions untouched
}

type RoleService interface {
	List(ctx context.Context, p *domain.Principal) ([]*domain.Role, error)
	Get(ctx context.Context, p *domain.Principal, id string) (*domain.Role, error)
	Create(ctx context.Context, p *domain.Principal, in CreateRoleInput) (*domain.Role, error)
	Update(ctx context.Context, p *domain.Principal, id string, in UpdateRoleInput) (*domain.Role, error)
}

type ProvisionUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Branch    domain.Branch
	RoleID    string
	Activate  bool
}

type UserService interface {
	Provision(ctx context.Context, p *domain.Principal, in ProvisionUserInput) (*domain.User, error)
	List(ctx context.Context, p *domain.Principal, status domain.UserStatus) ([]*domain.User, error)
	SetStatus(ctx context.Context, p *domain.Principal, id string, status domain.UserStatus) (*domain.User, error)
	AssignRole(ctx context.Context, p *domain.Principal, id, roleID string) (*domain.User, error)
}

type ClientService interface {
	List(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Client, error)
	Get(ctx context.Context, p *domain.Principal, id string) (*domain.Client, error)
	Update(ctx context.Context, p *domain.Principal, id string, patch domain.ClientPatch) (*domain.Client, error)
}

type ProjectService interface {
	List(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Project, error)
	Get(ctx context.Context, p *domain.Principal, id string) (*domain.Project, error)
	Update(ctx context.Context, p *domain.Principal, id string, patch domain.ProjectPatch) (*domain.Project, error)
}

type AuditService interface {
	Recent(ctx context.Context, p *domain.Principal, filter domain.AuditFilter) ([]*domain.AuditEvent, error)
}
