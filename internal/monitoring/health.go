package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports whether decision cycles are running
type HealthChecker struct {
	mu           sync.RWMutex
	lastCycle    time.Time
	lastOutcomes map[string]string
	maxSilence   time.Duration
	errors       func() []string
	openCircuits func() []string
}

// HealthStatus is the JSON body served by the health endpoint
type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	LastCycle    time.Time         `json:"last_cycle"`
	LastOutcomes map[string]string `json:"last_outcomes,omitempty"`
	Uptime       string            `json:"uptime"`
	OpenCircuits []string          `json:"open_circuits,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
}

// NewHealthChecker creates a checker that degrades after maxSilence without a cycle
func NewHealthChecker(maxSilence time.Duration) *HealthChecker {
	return &HealthChecker{
		lastOutcomes: make(map[string]string),
		maxSilence:   maxSilence,
	}
}

// SetErrorSource wires a provider of recent error messages
func (h *HealthChecker) SetErrorSource(fn func() []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = fn
}

// SetCircuitSource wires a provider of open circuit breaker names
func (h *HealthChecker) SetCircuitSource(fn func() []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openCircuits = fn
}

// RecordCycle notes a completed cycle
func (h *HealthChecker) RecordCycle(symbol, outcome string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = at
	h.lastOutcomes[symbol] = outcome
}

// Status computes the current health
func (h *HealthChecker) Status(now time.Time) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	outcomes := make(map[string]string, len(h.lastOutcomes))
	for k, v := range h.lastOutcomes {
		outcomes[k] = v
	}
	health := HealthStatus{
		Status:       "healthy",
		Timestamp:    now,
		LastCycle:    h.lastCycle,
		LastOutcomes: outcomes,
		Uptime:       now.Sub(startTime).Round(time.Second).String(),
	}
	if h.openCircuits != nil {
		health.OpenCircuits = h.openCircuits()
	}
	if h.errors != nil {
		health.Errors = h.errors()
	}

	if h.lastCycle.IsZero() || (h.maxSilence > 0 && now.Sub(h.lastCycle) > h.maxSilence) || len(health.OpenCircuits) > 0 {
		health.Status = "degraded"
	}
	return health
}

// ServeHTTP serves the health status as JSON
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status(time.Now())

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
