package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// BootstrapAdmin is the first account created on an empty store.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// Seeder makes sure the system roles and the bootstrap account exist.
type Seeder struct {
	users    ports.UserRepository
	roles    ports.RoleRepository
	log      zerolog.Logger
	hashCost int
	now      func() time.Time
}

func NewSeeder(users ports.UserRepository, roles ports.RoleRepository, log zerolog.Logger) *Seeder {
	return &Seeder{
		users:    users,
		roles:    roles,
		log:      log,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SystemRoles returns the seeded roles and their permission sets.
func SystemRoles() []domain.Role {
	grouped := domain.Catalog().Grouped()
	lead := func(ns string) []domain.Permission {
		perms := append([]domain.Permission{domain.PermViewDashboard}, grouped[ns]...)
		slices.Sort(perms)
		return perms
	}
	return []domain.Role{
		{Name: domain.RoleSuperAdmin, Branch: domain.BranchAdmin, Permissions: []domain.Permission{domain.Wildcard}, IsSystemRole: true},
		{Name: domain.RoleWebLead, Branch: domain.BranchWebDev, Permissions: lead(domain.NamespaceWeb), IsSystemRole: true},
		{Name: domain.RoleCyberLead, Branch: domain.BranchCyberSecurity, Permissions: lead(domain.NamespaceCyber), IsSystemRole: true},
	}
}

// Run is idempotent. System role permissions are brought back in line with
// the catalog on every start.
func (s *Seeder) Run(ctx context.Context, admin BootstrapAdmin) error {
	var superAdmin *domain.Role
	for _, want := range SystemRoles() {
		role, err := s.ensureRole(ctx, want)
		if err != nil {
			return err
		}
		if role.Name == domain.RoleSuperAdmin {
			superAdmin = role
		}
	}

	if admin.Username == "" || admin.Password == "" {
		s.log.Info().Msg("no bootstrap admin configured, skipping")
		return nil
	}
	return s.ensureAdmin(ctx, admin, superAdmin)
}

func (s *Seeder) ensureRole(ctx context.Context, want domain.Role) (*domain.Role, error) {
	existing, err := s.roles.FindByName(ctx, want.Branch, want.Name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := s.now()
		want.CreatedAt, want.UpdatedAt = now, now
		created, err := s.roles.Create(ctx, &want)
		if err != nil {
			return nil, fmt.Errorf("seed role %q: %w", want.Name, err)
		}
		s.log.Info().Str("role", created.Name).Str("branch", string(created.Branch)).Msg("system role created")
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("seed role %q: %w", want.Name, err)
	}

	if existing.IsSystemRole && slices.Equal(existing.Permissions, want.Permissions) {
		return existing, nil
	}
	existing.Permissions = want.Permissions
	existing.IsSystemRole = true
	existing.UpdatedAt = s.now()
	if err := s.roles.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("sync role %q: %w", want.Name, err)
	}
	s.log.Info().Str("role", existing.Name).Msg("system role permissions synced")
	return existing, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, admin BootstrapAdmin, role *domain.Role) error {
	username := strings.ToLower(strings.TrimSpace(admin.Username))
	_, err := s.users.FindByIdentifier(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("seed admin: hash password: %w", err)
	}
	now := s.now()
	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(admin.Email)),
		PasswordHash: string(hash),
		Branch:       role.Branch,
		RoleID:       role.ID,
		Status:       domain.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("bootstrap admin created")
	return nil
}
