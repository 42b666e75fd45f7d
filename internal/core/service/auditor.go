package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// Auditor writes security events to the structured log and forwards them to an
// optional sink for persistence.
type Auditor struct {
	log  zerolog.Logger
	sink ports.AuditSink
	now  func() time.Time
}

// NewAuditor returns an Auditor. sink may be nil.
func NewAuditor(log zerolog.Logger, sink ports.AuditSink) *Auditor {
	return &Auditor{
		log:  log.With().Str("component", "audit").Logger(),
		sink: sink,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Record stamps ev and emits it. Credential failures and ordinary denials go
// out at info/warn; system errors at error.
func (a *Auditor) Record(_ context.Context, ev domain.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = a.now()
	}

	var entry *zerolog.Event
	switch ev.Type {
	case domain.AuditSystemError:
		entry = a.log.Error()
	case domain.AuditBranchViolation, domain.AuditAccessDenied, domain.AuditLoginRateLimited:
		entry = a.log.Warn()
	default:
		entry = a.log.Info()
	}

	entry = entry.Str("event", string(ev.Type)).Str("audit_id", ev.ID)
	if ev.ActorID != "" {
		entry = entry.Str("user_id", ev.ActorID)
	}
	if ev.Username != "" {
		entry = entry.Str("username", ev.Username)
	}
	if ev.Branch != "" {
		entry = entry.Str("branch", string(ev.Branch))
	}
	if ev.IP != "" {
		entry = entry.Str("ip", ev.IP)
	}
	if ev.Permission != "" {
		entry = entry.Str("permission", string(ev.Permission))
	}
	if ev.Resource != "" {
		entry = entry.Str("resource", ev.Resource).Str("resource_id", ev.ResourceID)
	}
	if ev.ResourceBranch != "" {
		entry = entry.Str("resource_branch", string(ev.ResourceBranch))
	}
	if ev.Reason != "" {
		entry = entry.Str("reason", ev.Reason)
	}
	entry.Msg("security event")

	if a.sink != nil {
		a.sink.Publish(ev)
	}
}

// actorEvent pre-fills the actor fields of an audit event from p.
func actorEvent(t domain.AuditEventType, p *domain.Principal) domain.AuditEvent {
	ev := domain.AuditEvent{Type: t}
	if p != nil {
		ev.ActorID = p.UserID
		ev.Username = p.Username
		ev.Branch = p.Branch
	}
	return ev
}

// AuditQuery serves the audit trail listing.
type AuditQuery struct {
	repo ports.AuditRepository
}

func NewAuditQuery(repo ports.AuditRepository) *AuditQuery {
	return &AuditQuery{repo: repo}
}

const maxAuditPage = 200

// Recent returns the newest events first, capped at maxAuditPage. Events are
// limited to the branches p administers; only principals that administer
// every branch see events with no branch, such as failed logins for unknown
// identifiers.
func (q *AuditQuery) Recent(ctx context.Context, p *domain.Principal, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	if filter.Limit <= 0 || filter.Limit > maxAuditPage {
		filter.Limit = maxAuditPage
	}
	scope := OrgBranches(p)
	if len(scope) == 0 {
		return []*domain.AuditEvent{}, nil
	}
	filter.Branches = scope
	filter.AllBranches = len(scope) == len(domain.AllBranches())

	events, err := q.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.SystemError("list audit events", err)
	}
	out := make([]*domain.AuditEvent, 0, len(events))
	for _, e := range events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
