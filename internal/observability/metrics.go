// Package observability holds the Prometheus collectors shared across the
// orchestrator's services.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the orchestrator exports. A single instance
// is wired through the services at startup.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionTransitions *prometheus.CounterVec
	ListenerEvents     *prometheus.CounterVec
	PresignAvailable   prometheus.Gauge
	QueueDepth         *prometheus.GaugeVec
	TreasuryTopUps     *prometheus.CounterVec
	MintSubmissions    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sealbridge",
			Name:      "sessions_created_total",
			Help:      "Seal sessions opened through the control surface.",
		}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealbridge",
			Name:      "session_transitions_total",
			Help:      "Session status transitions, labelled by target status.",
		}, []string{"to"}),
		ListenerEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealbridge",
			Name:      "listener_events_total",
			Help:      "Ledger events processed by the listeners.",
		}, []string{"subscription", "outcome"}),
		PresignAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sealbridge",
			Name:      "presign_slots_available",
			Help:      "Presign capabilities currently available for allocation.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sealbridge",
			Name:      "txqueue_depth",
			Help:      "Operations waiting in the per-object transaction queues.",
		}, []string{"object"}),
		TreasuryTopUps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealbridge",
			Name:      "treasury_topups_total",
			Help:      "Fee treasury top-up attempts by outcome.",
		}, []string{"outcome"}),
		MintSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealbridge",
			Name:      "mint_submissions_total",
			Help:      "Destination mint submissions by outcome.",
		}, []string{"outcome"}),
	}
}

// NopMetrics returns collectors bound to a private registry, for tests.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
