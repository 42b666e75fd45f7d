// Command api serves the opshub admin API.
//
// @title                       opshub admin API
// @version                     1.0
// @description                 Role-based access control and branch isolation for the back-office suite.
// @BasePath                    /
// @securityDefinitions.apikey  SessionCookie
// @in                          cookie
// @name                        ops_session
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/branchdesk/opshub/docs"
	"github.com/branchdesk/opshub/internal/api"
	"github.com/branchdesk/opshub/internal/api/handler"
	"github.com/branchdesk/opshub/internal/api/metrics"
	"github.com/branchdesk/opshub/internal/api/middleware"
	"github.com/branchdesk/opshub/internal/core/service"
	mongostore "github.com/branchdesk/opshub/internal/infrastructure/db/mongo"
	redisstore "github.com/branchdesk/opshub/internal/infrastructure/db/redis"
	"github.com/branchdesk/opshub/internal/infrastructure/queue"
	"github.com/branchdesk/opshub/internal/pkg/config"
	"github.com/branchdesk/opshub/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("application error")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "opshub",
	})
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting application")

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo connected")

	store := mongostore.NewStore(db, cfg.Mongo.Timeout)
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	seeder := service.NewSeeder(store.Users, store.Roles, logger.Component("seed"))
	if err := seeder.Run(ctx, service.BootstrapAdmin{
		Username: cfg.Bootstrap.Username,
		Email:    cfg.Bootstrap.Email,
		Password: cfg.Bootstrap.Password,
	}); err != nil {
		return err
	}

	// The audit queue outlives the signal context so queued events drain
	// after the server stops accepting requests.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	dispatcher := queue.NewAuditDispatcher(cfg.Audit.Workers, store.Audit, logger.Component("audit_queue"))
	dispatcher.Start(auditCtx)
	metrics.RegisterAuditQueue(dispatcher.Depth, dispatcher.Dropped)

	auditor := service.NewAuditor(log, dispatcher)
	access := service.NewAccessEnforcer(auditor)
	tokens := service.NewSessionTokens(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	limiter := redisstore.NewLoginLimiter(rdb, cfg.Login.MaxAttempts, cfg.Login.Window, logger.Component("login_limiter"))

	authService := service.NewAuthService(
		store.Users,
		store.Roles,
		limiter,
		redisstore.NewRevocationList(rdb),
		tokens,
		auditor,
		logger.Component("auth"),
	)

	router := api.NewRouter(api.Deps{
		Log:   log,
		Redis: rdb,
		Session: api.SessionSettings{
			CookieName:   cfg.Session.CookieName,
			CSRFCookie:   cfg.Session.CSRFCookie,
			CSRFHeader:   cfg.Session.CSRFHeader,
			CookieDomain: cfg.Session.CookieDomain,
			CookieSecure: cfg.Session.CookieSecure,
		},
		Throttle: middleware.ThrottleConfig{
			Limit:    middleware.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
			FailOpen: true,
		},
		Audit: auditor,
		Pingers: map[string]handler.Pinger{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Auth:     authService,
		Roles:    service.NewRoleService(store.Roles, auditor, logger.Component("roles")),
		Users:    service.NewUserService(store.Users, store.Roles, auditor, logger.Component("users")),
		Clients:  service.NewClientService(store.Clients, access),
		Projects: service.NewProjectService(store.Projects, access),
		AuditLog: service.NewAuditQuery(store.Audit),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	stopAudit()
	dispatcher.Wait()
	log.Info().Int64("audit_dropped", dispatcher.Dropped()).Msg("shutdown complete")
	return nil
}
