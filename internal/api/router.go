package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/branchdesk/opshub/internal/api/handler"
	"github.com/branchdesk/opshub/internal/api/middleware"
	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// SessionSettings names the cookies and header used by the session and
// anti-forgery middleware.
type SessionSettings struct {
	CookieName   string
	CSRFCookie   string
	CSRFHeader   string
	CookieDomain string
	CookieSecure bool
}

// Deps is everything the router needs to build the handler graph.
type Deps struct {
	Log      zerolog.Logger
	Redis    *redis.Client
	Session  SessionSettings
	Throttle middleware.ThrottleConfig
	Audit    middleware.AuditRecorder
	Pingers  map[string]handler.Pinger

	// Registerer receives the HTTP metrics. Nil means the default registry.
	Registerer prometheus.Registerer

	Auth     ports.AuthService
	Roles    ports.RoleService
	Users    ports.UserService
	Clients  ports.ClientService
	Projects ports.ProjectService
	AuditLog ports.AuditService
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "opshub",
		Skipper:    operationalPath,
		Registerer: d.Registerer,
	}))
	throttle := d.Throttle
	if throttle.Skipper == nil {
		throttle.Skipper = operationalPath
	}
	e.Use(middleware.Throttle(d.Redis, throttle, d.Log))

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewHealthDependenciesHandler(d.Pingers).Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	session := middleware.Session(d.Auth, d.Session.CookieName)
	csrf := middleware.AntiForgery(d.Session.CSRFCookie, d.Session.CSRFHeader, d.Audit, d.Log)
	gate := middleware.NewGate(d.Audit, d.Log)

	// --- Auth ---
	authHandler := handler.NewAuthHandler(d.Auth, handler.CookieConfig{
		SessionName: d.Session.CookieName,
		CSRFName:    d.Session.CSRFCookie,
		Domain:      d.Session.CookieDomain,
		Secure:      d.Session.CookieSecure,
	})
	e.POST("/auth/login", authHandler.Login)

	// Everything below requires a session; unsafe methods also require the
	// anti-forgery token.
	protected := func(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		return append([]echo.MiddlewareFunc{session, csrf}, mw...)
	}
	e.POST("/auth/logout", authHandler.Logout, protected()...)
	e.GET("/auth/me", authHandler.Me, protected()...)

	// --- Permissions and roles ---
	e.GET("/permissions/manifest", handler.NewPermissionHandler().Manifest,
		protected(gate.RequirePermission(domain.PermViewPermissions))...)

	roleHandler := handler.NewRoleHandler(d.Roles)
	viewRoles := gate.RequirePermission(domain.PermViewRoles)
	manageRoles := gate.RequirePermission(domain.PermManageRoles)
	e.GET("/roles", roleHandler.List, protected(viewRoles)...)
	e.GET("/roles/:id", roleHandler.Get, protected(viewRoles)...)
	e.POST("/roles", roleHandler.Create, protected(manageRoles)...)
	e.PATCH("/roles/:id", roleHandler.Update, protected(manageRoles)...)

	// --- Users ---
	userHandler := handler.NewUserHandler(d.Users)
	manageUsers := gate.RequirePermission(domain.PermManageUsers)
	e.GET("/users", userHandler.List,
		protected(gate.RequirePermission(domain.PermViewUsers))...)
	e.POST("/users", userHandler.Provision, protected(manageUsers)...)
	e.PATCH("/users/:id/status", userHandler.SetStatus, protected(manageUsers)...)
	e.PATCH("/users/:id/role", userHandler.AssignRole, protected(manageUsers)...)

	// --- Branch-tagged records ---
	// The gate only checks that some branch permission is held; the services
	// narrow to the branches the principal can actually read or write.
	clientHandler := handler.NewClientHandler(d.Clients)
	viewClients := gate.RequireAny(domain.PermissionsFor(domain.ResourceClients, domain.ActionView)...)
	e.GET("/clients", clientHandler.List, protected(viewClients)...)
	e.GET("/clients/:id", clientHandler.Get, protected(viewClients)...)
	e.PATCH("/clients/:id", clientHandler.Update,
		protected(gate.RequireAny(domain.PermissionsFor(domain.ResourceClients, domain.ActionManage)...))...)

	projectHandler := handler.NewProjectHandler(d.Projects)
	viewProjects := gate.RequireAny(domain.PermissionsFor(domain.ResourceProjects, domain.ActionView)...)
	e.GET("/projects", projectHandler.List, protected(viewProjects)...)
	e.GET("/projects/:id", projectHandler.Get, protected(viewProjects)...)
	e.PATCH("/projects/:id", projectHandler.Update,
		protected(gate.RequireAny(domain.PermissionsFor(domain.ResourceProjects, domain.ActionManage)...))...)

	// --- Audit ---
	e.GET("/audit", handler.NewAuditHandler(d.AuditLog).List,
		protected(gate.RequirePermission(domain.PermViewAudit))...)

	return e
}

// operationalPath reports whether the request targets a probe, metrics or
// docs endpoint, which are neither throttled nor measured.
func operationalPath(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/health" || p == "/health/ready" || p == "/metrics" || strings.HasPrefix(p, "/swagger/")
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
