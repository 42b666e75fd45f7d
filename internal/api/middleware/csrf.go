package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/service"
)

// AntiForgery enforces the double-submit check on unsafe methods: the header
// token must be well formed and byte-equal to the cookie token.
func AntiForgery(cookieName, headerName string, audit AuditRecorder, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if safeMethod(c.Request().Method) {
				return next(c)
			}

			var cookieToken string
			if cookie, err := c.Cookie(cookieName); err == nil {
				cookieToken = cookie.Value
			}
			headerToken := c.Request().Header.Get(headerName)

			if reason := antiForgeryFailure(cookieToken, headerToken); reason != "" {
				metrics.AntiForgeryRejectionsTotal.Inc()
				ev := domain.AuditEvent{
					Type:   domain.AuditAccessDenied,
					IP:     service.NormalizeIP(c.RealIP()),
					Reason: reason,
				}
				if p, ok := PrincipalFrom(c); ok {
					ev.ActorID, ev.Username, ev.Branch = p.UserID, p.Username, p.Branch
				}
				log.Info().
					Str("event", "csrf_rejected").
					Str("reason", reason).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Msg("anti-forgery check failed")
				if audit != nil {
					audit.Record(c.Request().Context(), ev)
				}
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

func antiForgeryFailure(cookieToken, headerToken string) string {
	switch {
	case cookieToken == "":
		return "csrf_cookie_missing"
	case headerToken == "":
		return "csrf_header_missing"
	case !service.WellFormedAntiForgeryToken(headerToken) || !service.WellFormedAntiForgeryToken(cookieToken):
		return "csrf_malformed"
	case subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1:
		return "csrf_mismatch"
	}
	return ""
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
