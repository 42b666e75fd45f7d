package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/domain"
)

const principalKey = "principal"

// PrincipalResolver verifies a session token and loads the current principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error)
}

// AuditRecorder receives security events raised by the middleware chain.
type AuditRecorder interface {
	Record(ctx context.Context, ev domain.AuditEvent)
}

// Session resolves the principal for every request. The session cookie is
// tried first; when it is missing or does not resolve, an Authorization bearer
// token is tried instead.
func Session(resolver PrincipalResolver, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokens := sessionTokens(c, cookieName)
			if len(tokens) == 0 {
				metrics.SessionResolutionsTotal.WithLabelValues("missing").Inc()
				return domain.ErrUnauthenticated
			}

			var (
				p   *domain.Principal
				err error
			)
			for _, token := range tokens {
				p, err = resolver.ResolvePrincipal(c.Request().Context(), token)
				if err == nil || errors.Is(err, domain.ErrSystem) {
					break
				}
			}
			if err != nil {
				result := "rejected"
				if errors.Is(err, domain.ErrSystem) {
					result = "error"
				}
				metrics.SessionResolutionsTotal.WithLabelValues(result).Inc()
				return err
			}

			metrics.SessionResolutionsTotal.WithLabelValues("ok").Inc()
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// sessionTokens returns the cookie token and the bearer token, in that order,
// skipping absent and duplicate values.
func sessionTokens(c echo.Context, cookieName string) []string {
	var tokens []string
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return tokens
	}
	if token = strings.TrimSpace(token); token != "" && (len(tokens) == 0 || tokens[0] != token) {
		tokens = append(tokens, token)
	}
	return tokens
}

// PrincipalFrom returns the principal attached by Session.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p *domain.Principal) {
	c.Set(principalKey, p)
}
