package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// CookieConfig names the cookies that carry the session and anti-forgery
// tokens.
type CookieConfig struct {
	SessionName string
	CSRFName    string
	Domain      string
	Secure      bool
}

type AuthHandler struct {
	authService ports.AuthService
	cookies     CookieConfig
}

func NewAuthHandler(authService ports.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password"   validate:"required,max=256"`
}

type principalSummary struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	RoleID      string    `json:"role_id"`
	Role        string    `json:"role"`
	Branch      string    `json:"branch"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type loginResponse struct {
	Principal    principalSummary `json:"principal"`
	SessionToken string           `json:"session_token"`
	CSRFToken    string           `json:"csrf_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

func summarize(p *domain.Principal) principalSummary {
	return principalSummary{
		UserID:      p.UserID,
		Username:    p.Username,
		RoleID:      p.RoleID,
		Role:        p.RoleName,
		Branch:      string(p.Branch),
		Permissions: p.Permissions.Strings(),
		ExpiresAt:   p.SessionExpiresAt,
	}
}

// Login authenticates a user and issues the session and anti-forgery tokens,
// both as cookies and in the body for non-cookie clients.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Username or email and password"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return domain.ErrInvalidCredentials
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		ClientIP:   c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginOutcome(err)).Inc()
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	c.SetCookie(h.sessionCookie(res.SessionToken, res.ExpiresAt))
	c.SetCookie(h.csrfCookie(res.AntiForgeryToken, res.ExpiresAt))

	return c.JSON(http.StatusOK, loginResponse{
		Principal:    summarize(res.Principal),
		SessionToken: res.SessionToken,
		CSRFToken:    res.AntiForgeryToken,
		ExpiresAt:    res.ExpiresAt,
	})
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	}
	return "error"
}

// Logout revokes the current session and clears both cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string  true  "Anti-forgery token"
// @Success      200           {object}  map[string]string
// @Failure      401           {object}  map[string]string
// @Failure      403           {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), p, c.RealIP()); err != nil {
		return err
	}

	c.SetCookie(h.expired(h.sessionCookie("", time.Time{})))
	c.SetCookie(h.expired(h.csrfCookie("", time.Time{})))
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the principal resolved for the current request.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  principalSummary
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(p))
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookies.SessionName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// csrfCookie must stay readable by client script so it can be echoed back in
// the anti-forgery header.
func (h *AuthHandler) csrfCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookies.CSRFName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		Secure:   h.cookies.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) expired(cookie *http.Cookie) *http.Cookie {
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}
