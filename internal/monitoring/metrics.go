package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_cycles_total",
			Help: "Total number of decision cycles by terminal outcome",
		},
		[]string{"symbol", "outcome"},
	)

	decisionConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fusion_decision_confidence",
			Help: "Blended confidence of the latest decision",
		},
		[]string{"symbol"},
	)

	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fusion_cycle_duration_seconds",
			Help:    "Wall time of a decision cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	gateDowngrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_gate_downgrades_total",
			Help: "Execute requests forced to dry_run by the safety gate",
		},
		[]string{"symbol"},
	)

	// Market data metrics
	consensusSpread = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fusion_consensus_spread_pct",
			Help: "Max spread between price sources relative to the median",
		},
		[]string{"symbol"},
	)

	referencePrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fusion_reference_price",
			Help: "Consensus reference price",
		},
		[]string{"symbol"},
	)

	// Error metrics
	collaboratorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusion_collaborator_errors_total",
			Help: "Failures reported by external collaborators",
		},
		[]string{"collaborator", "category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(decisionConfidence)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(gateDowngrades)
	prometheus.MustRegister(consensusSpread)
	prometheus.MustRegister(referencePrice)
	prometheus.MustRegister(collaboratorErrors)
}

// MetricsHandler serves the Prometheus metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordCycle records a finished decision cycle
func RecordCycle(symbol, outcome string, confidence float64, took time.Duration) {
	cyclesTotal.WithLabelValues(symbol, outcome).Inc()
	decisionConfidence.WithLabelValues(symbol).Set(confidence)
	cycleDuration.WithLabelValues(symbol).Observe(took.Seconds())
}

// RecordConsensus updates the price consensus gauges. An undefined spread is not exported.
func RecordConsensus(symbol string, price, spread float64, spreadDefined bool) {
	referencePrice.WithLabelValues(symbol).Set(price)
	if spreadDefined {
		consensusSpread.WithLabelValues(symbol).Set(spread)
	}
}

// RecordGateDowngrade counts an execute request the gate forced to dry_run
func RecordGateDowngrade(symbol string) {
	gateDowngrades.WithLabelValues(symbol).Inc()
}

// RecordCollaboratorError records a collaborator failure
func RecordCollaboratorError(collaborator, category string) {
	collaboratorErrors.WithLabelValues(collaborator, category).Inc()
}
