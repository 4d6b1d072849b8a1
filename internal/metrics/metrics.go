package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signquiz"

// Metrics holds the Prometheus collectors of the quiz service.
type Metrics struct {
	Answers        *prometheus.CounterVec
	Hints          *prometheus.CounterVec
	CoinsAwarded   prometheus.Counter
	LedgerFailures *prometheus.CounterVec
	ActiveSessions *prometheus.GaugeVec
	Reconciled     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Resolved questions by mode and result",
			},
			[]string{"mode", "result"}, // result: correct, incorrect, timeout
		),
		Hints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hints_total",
				Help:      "Hint purchases by result",
			},
			[]string{"result"},
		),
		CoinsAwarded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coins_awarded_total",
				Help:      "Coins credited for correct hint-free answers",
			},
		),
		LedgerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_failures_total",
				Help:      "Failed coin ledger and challenge counter writes",
			},
			[]string{"op"},
		),
		ActiveSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Sessions currently held in memory",
			},
			[]string{"mode"},
		),
		Reconciled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_jobs_total",
				Help:      "Background retries of degraded writes by result",
			},
			[]string{"op", "result"}, // result: applied, dropped
		),
	}
}
