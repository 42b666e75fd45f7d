package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": secret,
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.TTL != 8*time.Hour || cfg.Session.CookieName != "ops_session" || cfg.Session.CSRFHeader != "X-CSRF-Token" {
		t.Fatalf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.Login.MaxAttempts != 5 || cfg.Login.Window != 15*time.Minute {
		t.Fatalf("unexpected login defaults %+v", cfg.Login)
	}
	if cfg.Mongo.Timeout != 5*time.Second || cfg.Audit.Workers != 4 {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Mongo, cfg.Audit)
	}
	if !cfg.Session.CookieSecure || cfg.IsProduction() {
		t.Fatalf("unexpected env flags")
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": secret,
		"SESSION_TTL":    "30m",
		"LOGIN_WINDOW":   "1m",
		"ENV":            "production",
		"COOKIE_SECURE":  "false",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Login.Window != time.Minute {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Session, cfg.Login)
	}
	if cfg.Session.CookieSecure || !cfg.IsProduction() {
		t.Fatalf("unexpected env flags")
	}
}

func TestLoadWith_Rejects(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"SESSION_SECRET": "short"},
		"zero ttl":       {"SESSION_SECRET": secret, "SESSION_TTL": "0s"},
		"partial admin":  {"SESSION_SECRET": secret, "BOOTSTRAP_ADMIN_USERNAME": "root"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(env))
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
