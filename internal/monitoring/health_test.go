package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(time.Hour)
	now := time.Now()

	assert.Equal(t, "degraded", h.Status(now).Status)

	h.RecordCycle("BTC", "APPROVED", now)
	assert.Equal(t, "healthy", h.Status(now).Status)
	assert.Equal(t, "degraded", h.Status(now.Add(2*time.Hour)).Status)

	h.SetCircuitSource(func() []string { return []string{"yahoo"} })
	h.SetErrorSource(func() []string { return []string{"[DATA_SOURCE:yahoo] quote: status 502"} })
	status := h.Status(now)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, []string{"yahoo"}, status.OpenCircuits)
	assert.Len(t, status.Errors, 1)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthChecker(time.Hour)
	h.RecordCycle("ETH", "HELD", time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "HELD", body.LastOutcomes["ETH"])
}

func TestMetricsHandler(t *testing.T) {
	RecordCycle("BTC", "APPROVED", 68, 150*time.Millisecond)
	RecordConsensus("BTC", 50050, 0.002, true)
	RecordGateDowngrade("BTC")
	RecordCollaboratorError("yahoo", "TIMEOUT")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `fusion_cycles_total{outcome="APPROVED",symbol="BTC"}`)
	assert.Contains(t, body, `fusion_collaborator_errors_total{category="TIMEOUT",collaborator="yahoo"}`)
	assert.Contains(t, body, "fusion_reference_price")
}
