package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/service"
)

// Gate checks the principal attached by Session against required
// permissions. Matching is exact; only the wildcard grants more.
type Gate struct {
	audit AuditRecorder
	log   zerolog.Logger
}

func NewGate(audit AuditRecorder, log zerolog.Logger) *Gate {
	return &Gate{audit: audit, log: log}
}

// RequirePermission grants when the principal holds perm.
func (g *Gate) RequirePermission(perm domain.Permission) echo.MiddlewareFunc {
	return g.require(string(perm), func(p *domain.Principal) bool { return p.Has(perm) })
}

// RequireAll grants when the principal holds every one of perms.
func (g *Gate) RequireAll(perms ...domain.Permission) echo.MiddlewareFunc {
	return g.require(joinPermissions(perms, "+"), func(p *domain.Principal) bool { return p.HasAll(perms...) })
}

// RequireAny grants when the principal holds at least one of perms.
func (g *Gate) RequireAny(perms ...domain.Permission) echo.MiddlewareFunc {
	return g.require(joinPermissions(perms, "|"), func(p *domain.Principal) bool { return p.HasAny(perms...) })
}

func (g *Gate) require(label string, granted func(*domain.Principal) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if !granted(p) {
				metrics.AuthzDecisionsTotal.WithLabelValues("deny", label).Inc()
				g.log.Warn().
					Str("event", string(domain.AuditAccessDenied)).
					Str("user_id", p.UserID).
					Str("branch", string(p.Branch)).
					Str("permission", label).
					Str("path", c.Path()).
					Msg("permission denied")
				if g.audit != nil {
					g.audit.Record(c.Request().Context(), domain.AuditEvent{
						Type:       domain.AuditAccessDenied,
						ActorID:    p.UserID,
						Username:   p.Username,
						Branch:     p.Branch,
						IP:         service.NormalizeIP(c.RealIP()),
						Permission: domain.Permission(label),
						Resource:   c.Path(),
						Reason:     "missing_permission",
					})
				}
				return domain.ErrForbidden
			}
			metrics.AuthzDecisionsTotal.WithLabelValues("allow", label).Inc()
			return next(c)
		}
	}
}

func joinPermissions(perms []domain.Permission, sep string) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, sep)
}
