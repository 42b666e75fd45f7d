package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     map[string]*domain.User
	seq       int
	findErr   error
	successes int
	failures  map[string]int
	lookups   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User), failures: make(map[string]int)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) put(u *domain.User) *domain.User {
	if u.ID == "" {
		r.seq++
		u.ID = fmt.Sprintf("u%d", r.seq)
	}
	r.users[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) FindByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.lookups++
	if r.findErr != nil {
		return nil, r.findErr
	}
	identifier = strings.ToLower(identifier)
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	return cloneUser(r.put(cloneUser(user))), nil
}

func (r *stubUserRepo) List(_ context.Context, f domain.UserFilter) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		if !containsBranch(f.Branches, u.Branch) {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) UpdateStatus(_ context.Context, id string, status domain.UserStatus) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Status = status
	return nil
}

func (r *stubUserRepo) UpdateRole(_ context.Context, id, roleID string, branch domain.Branch) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.RoleID = roleID
	u.Branch = branch
	return nil
}

func (r *stubUserRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	r.successes++
	if u, ok := r.users[id]; ok {
		u.LastLogin = &at
		u.FailedLoginAttempts = 0
	}
	return nil
}

func (r *stubUserRepo) RecordLoginFailure(_ context.Context, id string) error {
	r.failures[id]++
	if u, ok := r.users[id]; ok {
		u.FailedLoginAttempts++
	}
	return nil
}

type stubRoleRepo struct {
	roles map[string]*domain.Role
	seq   int
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{roles: make(map[string]*domain.Role)}
}

func cloneRole(r *domain.Role) *domain.Role {
	clone := *r
	clone.Permissions = append([]domain.Permission(nil), r.Permissions...)
	return &clone
}

func (r *stubRoleRepo) put(role *domain.Role) *domain.Role {
	if role.ID == "" {
		r.seq++
		role.ID = fmt.Sprintf("r%d", r.seq)
	}
	r.roles[role.ID] = cloneRole(role)
	return role
}

func (r *stubRoleRepo) FindByID(_ context.Context, id string) (*domain.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRole(role), nil
}

func (r *stubRoleRepo) FindByName(_ context.Context, branch domain.Branch, name string) (*domain.Role, error) {
	for _, role := range r.roles {
		if role.Branch == branch && role.Name == name {
			return cloneRole(role), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubRoleRepo) List(_ context.Context, branches []domain.Branch) ([]*domain.Role, error) {
	var out []*domain.Role
	for _, role := range r.roles {
		if containsBranch(branches, role.Branch) {
			out = append(out, cloneRole(role))
		}
	}
	return out, nil
}

func (r *stubRoleRepo) Create(_ context.Context, role *domain.Role) (*domain.Role, error) {
	for _, existing := range r.roles {
		if existing.Branch == role.Branch && existing.Name == role.Name {
			return nil, domain.ErrConflict
		}
	}
	return cloneRole(r.put(cloneRole(role))), nil
}

func (r *stubRoleRepo) Update(_ context.Context, role *domain.Role) error {
	if _, ok := r.roles[role.ID]; !ok {
		return domain.ErrNotFound
	}
	r.roles[role.ID] = cloneRole(role)
	return nil
}

// stubLimiter allows max attempts per key and counts every call.
type stubLimiter struct {
	max    int
	counts map[string]int
	resets []string
	err    error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{max: max, counts: make(map[string]int)}
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.counts[key] >= l.max {
		return false, nil
	}
	l.counts[key]++
	return true, nil
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	l.resets = append(l.resets, key)
	delete(l.counts, key)
	return nil
}

type stubRevoker struct {
	revoked map[string]time.Duration
}

func newStubRevoker() *stubRevoker {
	return &stubRevoker{revoked: make(map[string]time.Duration)}
}

func (r *stubRevoker) Revoke(_ context.Context, id string, ttl time.Duration) error {
	r.revoked[id] = ttl
	return nil
}

func (r *stubRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := r.revoked[id]
	return ok, nil
}

// captureSink records published audit events.
type captureSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (s *captureSink) Publish(ev domain.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) types() []domain.AuditEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func (s *captureSink) last() domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return domain.AuditEvent{}
	}
	return s.events[len(s.events)-1]
}

func (s *captureSink) has(t domain.AuditEventType) bool {
	for _, got := range s.types() {
		if got == t {
			return true
		}
	}
	return false
}

func newTestAuditor() (*Auditor, *captureSink) {
	sink := &captureSink{}
	return NewAuditor(zerolog.Nop(), sink), sink
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func principal(branch domain.Branch, perms ...domain.Permission) *domain.Principal {
	set := make(domain.PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &domain.Principal{
		UserID:      "actor-" + string(branch),
		Username:    "actor",
		Branch:      branch,
		Permissions: set,
	}
}

func mustHash(t interface{ Fatalf(string, ...any) }, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}
