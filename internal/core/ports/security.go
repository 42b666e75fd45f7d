package ports

import (
	"context"
	"time"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// LoginLimiter bounds login attempts per key inside a sliding window.
// Allow must count the attempt and decide atomically.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SessionRevoker tracks logged-out session ids until their tokens expire.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// AuditSink receives audit events for persistence. Implementations must not
// block the request path.
type AuditSink interface {
	Publish(event domain.AuditEvent)
}

// AuditRepository stores and lists audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error)
}
