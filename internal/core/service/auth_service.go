package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// dummyHash is compared against when the identifier is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash []byte

func init() {
	h, err := bcrypt.GenerateFromPassword([]byte("dummy_password_for_timing_equalisation"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	dummyHash = h
}

// AuthService implements login, logout and per-request principal resolution.
type AuthService struct {
	users   ports.UserRepository
	roles   ports.RoleRepository
	limiter ports.LoginLimiter
	revoker ports.SessionRevoker
	tokens  *SessionTokens
	audit   *Auditor
	log     zerolog.Logger
	now     func() time.Time
}

func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	limiter ports.LoginLimiter,
	revoker ports.SessionRevoker,
	tokens *SessionTokens,
	audit *Auditor,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		roles:   roles,
		limiter: limiter,
		revoker: revoker,
		tokens:  tokens,
		audit:   audit,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials and issues a session token plus an independent
// anti-forgery token. Every credential failure returns the same
// ErrInvalidCredentials; the specific reason only reaches the audit log.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(in.Identifier))
	ip := NormalizeIP(in.ClientIP)
	attempt := domain.AuditEvent{IP: ip, Username: identifier}

	if identifier == "" || in.Password == "" {
		s.loginFailed(ctx, attempt, "missing_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	key := LoginLimiterKey(ip, identifier)
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return nil, s.systemError(ctx, attempt, "login limiter", err)
	}
	if !allowed {
		ev := attempt
		ev.Type = domain.AuditLoginRateLimited
		s.audit.Record(ctx, ev)
		return nil, domain.ErrRateLimited
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		s.loginFailed(ctx, attempt, "unknown_identifier")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.systemError(ctx, attempt, "find user", err)
	}
	attempt.ActorID = user.ID
	attempt.Username = user.Username
	attempt.Branch = user.Branch

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		if err := s.users.RecordLoginFailure(ctx, user.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record login failure")
		}
		s.loginFailed(ctx, attempt, "bad_password")
		return nil, domain.ErrInvalidCredentials
	}

	if user.Status != domain.UserActive {
		s.loginFailed(ctx, attempt, "inactive_account:"+string(user.Status))
		return nil, domain.ErrInvalidCredentials
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, s.systemError(ctx, attempt, "find role", err)
	}
	perms := s.rolePermissions(role)

	session, err := s.tokens.Issue(user, role, perms)
	if err != nil {
		return nil, s.systemError(ctx, attempt, "issue session", err)
	}
	csrf, err := NewAntiForgeryToken()
	if err != nil {
		return nil, s.systemError(ctx, attempt, "issue anti-forgery token", err)
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to reset login limiter")
	}
	if err := s.users.RecordLoginSuccess(ctx, user.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record login")
	}

	principal := buildPrincipal(user, role, perms)
	principal.SessionID = session.ID
	principal.SessionExpiresAt = session.ExpiresAt

	ev := attempt
	ev.Type = domain.AuditLoginSuccess
	ev.Branch = principal.Branch
	s.audit.Record(ctx, ev)

	return &ports.LoginResult{
		SessionToken:     session.Token,
		AntiForgeryToken: csrf,
		ExpiresAt:        session.ExpiresAt,
		Principal:        principal,
	}, nil
}

// Logout revokes the principal's session id until its token would have
// expired anyway.
func (s *AuthService) Logout(ctx context.Context, p *domain.Principal, clientIP string) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	if ttl := p.SessionExpiresAt.Sub(s.now()); ttl > 0 {
		if err := s.revoker.Revoke(ctx, p.SessionID, ttl); err != nil {
			return domain.SystemError("revoke session", err)
		}
	}
	ev := actorEvent(domain.AuditLogout, p)
	ev.IP = NormalizeIP(clientIP)
	s.audit.Record(ctx, ev)
	return nil
}

// ResolvePrincipal verifies token and loads the user and role fresh from the
// stores, so suspensions and permission edits apply on the next request.
func (s *AuthService) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.sessionRejected(ctx, "", sessionFailureReason(err))
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, domain.SystemError("check session revocation", err)
	}
	if revoked {
		s.sessionRejected(ctx, claims.Subject, "revoked")
		return nil, fmt.Errorf("session revoked: %w", domain.ErrUnauthenticated)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		s.sessionRejected(ctx, claims.Subject, "user_missing")
		return nil, fmt.Errorf("session user missing: %w", domain.ErrUnauthenticated)
	}
	if err != nil {
		return nil, domain.SystemError("load session user", err)
	}
	if user.Status != domain.UserActive {
		s.sessionRejected(ctx, user.ID, "inactive_account:"+string(user.Status))
		return nil, fmt.Errorf("account %s: %w", user.Status, domain.ErrUnauthenticated)
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, domain.SystemError("load session role "+user.RoleID, err)
	}

	p := buildPrincipal(user, role, s.rolePermissions(role))
	p.SessionID = claims.ID
	if claims.ExpiresAt != nil {
		p.SessionExpiresAt = claims.ExpiresAt.Time
	}
	if user.Branch != role.Branch {
		s.log.Warn().
			Str("user_id", user.ID).
			Str("user_branch", string(user.Branch)).
			Str("role_branch", string(role.Branch)).
			Msg("user and role branch disagree, using role branch")
	}
	return p, nil
}

func (s *AuthService) rolePermissions(role *domain.Role) domain.PermissionSet {
	perms, unknown := role.PermissionSet()
	if len(unknown) > 0 {
		s.log.Warn().
			Str("role_id", role.ID).
			Strs("unknown", unknown).
			Msg("role carries permissions outside the catalog, ignoring them")
	}
	return perms
}

func (s *AuthService) loginFailed(ctx context.Context, ev domain.AuditEvent, reason string) {
	ev.Type = domain.AuditLoginFailed
	ev.Reason = reason
	s.audit.Record(ctx, ev)
}

func (s *AuthService) sessionRejected(ctx context.Context, userID, reason string) {
	s.audit.Record(ctx, domain.AuditEvent{
		Type:    domain.AuditSessionRejected,
		ActorID: userID,
		Reason:  reason,
	})
}

func (s *AuthService) systemError(ctx context.Context, ev domain.AuditEvent, op string, err error) error {
	s.log.Error().Err(err).Str("op", op).Str("user_id", ev.ActorID).Msg("login dependency failure")
	ev.Type = domain.AuditSystemError
	ev.Reason = op
	s.audit.Record(ctx, ev)
	return domain.SystemError(op, err)
}

// buildPrincipal derives the principal from store records. The branch comes
// from the role, which is what the permissions were granted for.
func buildPrincipal(user *domain.User, role *domain.Role, perms domain.PermissionSet) *domain.Principal {
	return &domain.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		RoleID:      role.ID,
		RoleName:    role.Name,
		Branch:      role.Branch,
		Permissions: perms,
	}
}

func sessionFailureReason(err error) string {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "missing"):
		return "missing"
	case strings.Contains(msg, "expired"):
		return "expired"
	default:
		return "invalid"
	}
}

// LoginLimiterKey scopes login attempts to a source address and identifier.
func LoginLimiterKey(ip, identifier string) string {
	return "login:" + ip + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

// NormalizeIP strips any port and collapses IPv4-mapped IPv6 so one client
// maps to one limiter key.
func NormalizeIP(raw string) string {
	s := strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	}
	return strings.ToLower(s)
}
