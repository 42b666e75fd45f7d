package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// RoleService manages branch-scoped roles.
type RoleService struct {
	roles ports.RoleRepository
	audit *Auditor
	log   zerolog.Logger
	now   func() time.Time
}

func NewRoleService(roles ports.RoleRepository, audit *Auditor, log zerolog.Logger) *RoleService {
	return &RoleService{
		roles: roles,
		audit: audit,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List returns the roles in the branches p administers.
func (s *RoleService) List(ctx context.Context, p *domain.Principal) ([]*domain.Role, error) {
	roles, err := s.roles.List(ctx, OrgBranches(p))
	if err != nil {
		return nil, domain.SystemError("list roles", err)
	}
	return roles, nil
}

// Get returns a role, reporting roles outside p's branches as not found.
func (s *RoleService) Get(ctx context.Context, p *domain.Principal, id string) (*domain.Role, error) {
	role, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !containsBranch(OrgBranches(p), role.Branch) {
		return nil, fmt.Errorf("role %s: %w", id, domain.ErrNotFound)
	}
	return role, nil
}

func (s *RoleService) Create(ctx context.Context, p *domain.Principal, in ports.CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.ValidationError("name is required")
	}
	if !in.Branch.Valid() {
		return nil, domain.ValidationError("unknown branch %q", in.Branch)
	}
	if err := s.checkBranch(ctx, p, in.Branch, ""); err != nil {
		return nil, err
	}
	perms, err := s.checkGrant(ctx, p, in.Branch, in.Permissions)
	if err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.roles.Create(ctx, &domain.Role{
		Name:        name,
		Branch:      in.Branch,
		Permissions: perms.Slice(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("role %q in %s: %w", name, in.Branch, domain.ErrConflict)
	}
	if err != nil {
		return nil, domain.SystemError("create role", err)
	}

	s.changed(ctx, p, created, "created")
	return created, nil
}

// Update renames a role or replaces its permissions. System roles reject both.
func (s *RoleService) Update(ctx context.Context, p *domain.Principal, id string, in ports.UpdateRoleInput) (*domain.Role, error) {
	role, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkBranch(ctx, p, role.Branch, role.ID); err != nil {
		return nil, err
	}
	if role.IsSystemRole {
		ev := actorEvent(domain.AuditAccessDenied, p)
		ev.Resource = "roles"
		ev.ResourceID = role.ID
		ev.Reason = "system_role_immutable"
		s.audit.Record(ctx, ev)
		return nil, fmt.Errorf("role %s: %w", role.Name, domain.ErrSystemRoleImmutable)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.ValidationError("name must not be empty")
		}
		role.Name = name
	}
	if in.Permissions != nil {
		perms, err := s.checkGrant(ctx, p, role.Branch, in.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms.Slice()
	}
	role.UpdatedAt = s.now()

	if err := s.roles.Update(ctx, role); err != nil {
		if domain.IsDomainError(err) {
			return nil, err
		}
		return nil, domain.SystemError("update role", err)
	}

	s.log.Info().
		Str("role_id", role.ID).
		Str("actor", p.Username).
		Int("permissions", len(role.Permissions)).
		Msg("role updated")
	s.changed(ctx, p, role, "updated")
	return role, nil
}

func (s *RoleService) find(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("role %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.SystemError("find role", err)
	}
	return role, nil
}

func (s *RoleService) checkBranch(ctx context.Context, p *domain.Principal, branch domain.Branch, roleID string) error {
	return requireOrgBranch(ctx, s.audit, p, "roles", roleID, branch)
}

// checkGrant validates a requested permission list for a role of branch.
// Values must be catalog members that fit the branch, and a non-wildcard
// principal can only hand out permissions it holds itself.
func (s *RoleService) checkGrant(ctx context.Context, p *domain.Principal, branch domain.Branch, requested []string) (domain.PermissionSet, error) {
	perms, unknown := domain.NewPermissionSet(requested...)
	if len(unknown) > 0 {
		return nil, domain.ValidationError("unknown permissions: %s", strings.Join(unknown, ", "))
	}
	for _, perm := range perms.Slice() {
		if !perm.AllowedInBranch(branch) {
			return nil, domain.ValidationError("permission %s cannot be granted to a %s role", perm, branch)
		}
	}
	if err := requireGrantable(ctx, s.audit, p, "roles", perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *RoleService) changed(ctx context.Context, p *domain.Principal, role *domain.Role, what string) {
	ev := actorEvent(domain.AuditRoleChanged, p)
	ev.Resource = "roles"
	ev.ResourceID = role.ID
	ev.ResourceBranch = role.Branch
	ev.Reason = what
	s.audit.Record(ctx, ev)
}
