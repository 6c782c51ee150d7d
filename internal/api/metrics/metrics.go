// Package metrics defines and registers all custom Prometheus metrics for
// the relay gateway. It is the single source of truth for metric names,
// labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gateway"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsAdmittedTotal counts relay sessions that passed admission.
// Label:
//   - plan: the admitting user's plan id
var SessionsAdmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_admitted_total",
		Help:      "Total number of relay sessions admitted, by plan.",
	},
	[]string{"plan"},
)

// SessionsRejectedTotal counts relay admissions that were refused.
// Label:
//   - reason: "invalid_session", "concurrency", "backend_unavailable", "quota"
var SessionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_rejected_total",
		Help:      "Total number of relay admissions rejected, by reason.",
	},
	[]string{"reason"},
)

// SessionsActive tracks the number of relay sessions currently splicing.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Current number of open relay sessions.",
	},
)

// RelayBytesTotal counts bytes forwarded through the relay.
// Label:
//   - direction: "client_to_backend" or "backend_to_client"
var RelayBytesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_bytes_total",
		Help:      "Total bytes relayed between the client and backend legs.",
	},
	[]string{"direction"},
)

// ── Usage metrics ─────────────────────────────────────────────────────────────

// UsageReportsTotal counts async usage report outcomes.
// Label:
//   - result: "delivered", "duplicate", or "failed"
var UsageReportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_reports_total",
		Help:      "Total number of session usage reports, by delivery result.",
	},
	[]string{"result"},
)

// ── Allocator metrics ─────────────────────────────────────────────────────────

// AllocationsTotal counts node/port allocation outcomes.
// Label:
//   - result: "created", "reused", "no_capacity", "no_ports", "error"
var AllocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocations_total",
		Help:      "Total number of allocation requests, by outcome.",
	},
	[]string{"result"},
)

// ── Failover metrics ──────────────────────────────────────────────────────────

// FailoverAttemptsTotal counts failover attempts triggered by failed probes.
// Label:
//   - result: "promoted" or "no_standby"
var FailoverAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failover_attempts_total",
		Help:      "Total number of entry-domain failover attempts, by result.",
	},
	[]string{"result"},
)

// ProbeDuration measures the latency of entry-domain health probes.
// Label:
//   - outcome: "ok" or "failed"
var ProbeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_duration_seconds",
		Help:      "Duration of entry-domain health probes.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"outcome"},
)
