// Package metrics holds the prometheus collectors of the provisioner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var (
	// Provisions counts provisioning requests by result ("success" or an error kind).
	Provisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "provisioner",
		Subsystem: "workflow",
		Name:      "provisions_total",
		Help:      "Provisioning requests by result",
	}, []string{"result"})

	// CreateFallbacks counts bare group creation retries after an options call was rejected.
	CreateFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "provisioner",
		Subsystem: "workflow",
		Name:      "create_fallbacks_total",
		Help:      "Group creations retried without options",
	})

	// PromotionAttempts observes how many attempts each promotion batch used.
	PromotionAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "provisioner",
		Subsystem: "workflow",
		Name:      "promotion_attempts",
		Help:      "Attempts used per promotion batch",
		Buckets:   []float64{1, 2, 3, 5, 8},
	}, []string{"outcome"})

	// DeferredFailures counts failed best-effort steps.
	DeferredFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "provisioner",
		Subsystem: "workflow",
		Name:      "deferred_failures_total",
		Help:      "Failed best-effort follow-up steps",
	}, []string{"step"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "provisioner",
		Subsystem: "session",
		Name:      "state",
		Help:      "1 for the current backend session state, 0 otherwise",
	}, []string{"state"})
)

var sessionStates = []model.SessionState{
	model.SessionDisconnected,
	model.SessionAwaitingPairing,
	model.SessionAuthenticated,
	model.SessionReady,
}

// SetSessionState marks current as the only active session state.
func SetSessionState(current model.SessionState) {
	for _, s := range sessionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		sessionState.WithLabelValues(string(s)).Set(v)
	}
}
