package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

const minPasswordLen = 8

// UserService provisions accounts and moves them through their lifecycle.
type UserService struct {
	users    ports.UserRepository
	roles    ports.RoleRepository
	audit    *Auditor
	log      zerolog.Logger
	hashCost int
	now      func() time.Time
}

func NewUserService(users ports.UserRepository, roles ports.RoleRepository, audit *Auditor, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		roles:    roles,
		audit:    audit,
		log:      log,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Provision creates an account in in.Branch holding in.RoleID. The role must
// belong to the same branch.
func (s *UserService) Provision(ctx context.Context, p *domain.Principal, in ports.ProvisionUserInput) (*domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case username == "":
		return nil, domain.ValidationError("username is required")
	case strings.Contains(username, "@"):
		return nil, domain.ValidationError("username must not contain @")
	case len(in.Password) < minPasswordLen:
		return nil, domain.ValidationError("password must be at least %d characters", minPasswordLen)
	case !in.Branch.Valid():
		return nil, domain.ValidationError("unknown branch %q", in.Branch)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ValidationError("email is invalid")
	}

	if err := requireOrgBranch(ctx, s.audit, p, "users", "", in.Branch); err != nil {
		return nil, err
	}
	role, err := s.assignableRole(ctx, p, in.RoleID, in.Branch)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, domain.SystemError("hash password", err)
	}

	status := domain.UserPending
	if in.Activate {
		status = domain.UserActive
	}
	now := s.now()
	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		Branch:       role.Branch,
		RoleID:       role.ID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrConflict)
	}
	if err != nil {
		return nil, domain.SystemError("create user", err)
	}

	ev := actorEvent(domain.AuditUserProvisioned, p)
	ev.Resource = "users"
	ev.ResourceID = created.ID
	ev.ResourceBranch = created.Branch
	ev.Reason = string(created.Status)
	s.audit.Record(ctx, ev)
	return created, nil
}

// List returns users in the branches p administers, optionally by status.
func (s *UserService) List(ctx context.Context, p *domain.Principal, status domain.UserStatus) ([]*domain.User, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ValidationError("unknown status %q", status)
	}
	users, err := s.users.List(ctx, domain.UserFilter{Branches: OrgBranches(p), Status: status})
	if err != nil {
		return nil, domain.SystemError("list users", err)
	}
	return users, nil
}

// SetStatus activates or suspends an account. Principals cannot change their
// own status.
func (s *UserService) SetStatus(ctx context.Context, p *domain.Principal, id string, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, domain.ValidationError("unknown status %q", status)
	}
	if id == p.UserID {
		return nil, fmt.Errorf("change own status: %w", domain.ErrForbidden)
	}
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOrgBranch(ctx, s.audit, p, "users", user.ID, user.Branch); err != nil {
		return nil, err
	}
	if err := s.requireOutranks(ctx, p, user); err != nil {
		return nil, err
	}
	if user.Status == status {
		return user, nil
	}

	if err := s.users.UpdateStatus(ctx, user.ID, status); err != nil {
		return nil, s.storeError("update user status", err)
	}
	previous := user.Status
	user.Status = status
	user.UpdatedAt = s.now()

	ev := actorEvent(domain.AuditUserStatusChanged, p)
	ev.Resource = "users"
	ev.ResourceID = user.ID
	ev.ResourceBranch = user.Branch
	ev.Reason = string(previous) + "->" + string(status)
	s.audit.Record(ctx, ev)
	return user, nil
}

// AssignRole points a user at a different role. The user moves into the
// role's branch so user and role never disagree.
func (s *UserService) AssignRole(ctx context.Context, p *domain.Principal, id, roleID string) (*domain.User, error) {
	if id == p.UserID {
		return nil, fmt.Errorf("change own role: %w", domain.ErrForbidden)
	}
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOrgBranch(ctx, s.audit, p, "users", user.ID, user.Branch); err != nil {
		return nil, err
	}
	if err := s.requireOutranks(ctx, p, user); err != nil {
		return nil, err
	}
	role, err := s.assignableRole(ctx, p, roleID, "")
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateRole(ctx, user.ID, role.ID, role.Branch); err != nil {
		return nil, s.storeError("update user role", err)
	}
	user.RoleID = role.ID
	user.Branch = role.Branch
	user.UpdatedAt = s.now()

	ev := actorEvent(domain.AuditRoleChanged, p)
	ev.Resource = "users"
	ev.ResourceID = user.ID
	ev.ResourceBranch = user.Branch
	ev.Reason = "assigned:" + role.ID
	s.audit.Record(ctx, ev)
	return user, nil
}

// assignableRole loads roleID and checks p may hand it out. When branch is set
// the role must belong to it.
func (s *UserService) assignableRole(ctx context.Context, p *domain.Principal, roleID string, branch domain.Branch) (*domain.Role, error) {
	if strings.TrimSpace(roleID) == "" {
		return nil, domain.ValidationError("role_id is required")
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ValidationError("unknown role %q", roleID)
	}
	if err != nil {
		return nil, domain.SystemError("find role", err)
	}
	if branch != "" && role.Branch != branch {
		return nil, domain.ValidationError("role %q belongs to %s, not %s", role.Name, role.Branch, branch)
	}
	if err := requireOrgBranch(ctx, s.audit, p, "roles", role.ID, role.Branch); err != nil {
		return nil, err
	}
	perms, _ := role.PermissionSet()
	if err := requireGrantable(ctx, s.audit, p, "users", perms); err != nil {
		return nil, err
	}
	return role, nil
}

// requireOutranks checks p holds every permission of the user's current
// role. A user whose role no longer exists holds nothing.
func (s *UserService) requireOutranks(ctx context.Context, p *domain.Principal, user *domain.User) error {
	if p.IsWildcard() || user.RoleID == "" {
		return nil
	}
	role, err := s.roles.FindByID(ctx, user.RoleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.SystemError("find role", err)
	}
	perms, _ := role.PermissionSet()
	return requireHeld(ctx, s.audit, p, "users", perms, "manage holder of", "target_exceeds_own_permissions")
}

func (s *UserService) find(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.SystemError("find user", err)
	}
	return user, nil
}

func (s *UserService) storeError(op string, err error) error {
	if domain.IsDomainError(err) {
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("user store failure")
	return domain.SystemError(op, err)
}
