// Package metrics defines and registers all custom Prometheus metrics for the
// opshub admin API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opshub"

// ── Authentication ────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - outcome: "success", "invalid_credentials", "rate_limited" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SessionResolutionsTotal counts session verifications on protected routes.
// Label:
//   - result: "ok", "missing", "rejected" or "error"
var SessionResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resolutions_total",
		Help:      "Total number of session verifications, by result.",
	},
	[]string{"result"},
)

// ── Authorization ─────────────────────────────────────────────────────────────

// AuthzDecisionsTotal counts permission gate decisions.
// Labels:
//   - decision: "allow" or "deny"
//   - permission: the required permission, or the joined set for any-of/all-of gates
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Total number of authorization gate decisions.",
	},
	[]string{"decision", "permission"},
)

// AntiForgeryRejectionsTotal counts unsafe requests rejected for a missing or
// mismatched anti-forgery token.
var AntiForgeryRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "antiforgery_rejections_total",
		Help:      "Total number of requests rejected by the anti-forgery check.",
	},
)

// BranchViolationsTotal counts cross-branch access attempts rejected by the
// branch isolation rules.
var BranchViolationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "branch_violations_total",
		Help:      "Total number of requests rejected for crossing a branch silo.",
	},
)

// ThrottledRequestsTotal counts requests rejected by the global API throttle.
var ThrottledRequestsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttled_requests_total",
		Help:      "Total number of requests rejected by the API rate limit.",
	},
)

// ── Audit queue ───────────────────────────────────────────────────────────────

// RegisterAuditQueue exposes the audit dispatcher's backlog and drop count.
// Call once at startup.
func RegisterAuditQueue(depth func() int, dropped func() int64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_queue_depth",
			Help:      "Current number of audit events waiting to be persisted.",
		},
		func() float64 { return float64(depth()) },
	)
	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Total number of audit events dropped because the queue was full.",
		},
		func() float64 { return float64(dropped()) },
	)
}
