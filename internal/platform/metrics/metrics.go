package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the provisioning core.
type Metrics struct {
	AccountsProvisioned  *prometheus.CounterVec
	StepFailures         *prometheus.CounterVec
	CompensationsRun     prometheus.Counter
	CompensationFailures prometheus.Counter
	PollAttempts         prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AccountsProvisioned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrip_accounts_provisioned_total",
			Help: "Accounts provisioned successfully, by flow (team, patient_create, patient_update).",
		}, []string{"flow"}),
		StepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrip_provisioning_step_failures_total",
			Help: "Saga step failures that triggered a compensation unwind, by saga and step.",
		}, []string{"saga", "step"}),
		CompensationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrip_provisioning_compensations_total",
			Help: "Compensating actions executed during saga unwinds.",
		}),
		CompensationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrip_provisioning_compensation_failures_total",
			Help: "Compensating actions that themselves failed (logged residual risk).",
		}),
		PollAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrip_profile_poll_attempts",
			Help:    "Fetch attempts needed before an async profile row became visible.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}

// IncrementProvisioned records a completed provisioning flow.
func (m *Metrics) IncrementProvisioned(flow string) {
	m.AccountsProvisioned.WithLabelValues(flow).Inc()
}
