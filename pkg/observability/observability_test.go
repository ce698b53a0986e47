package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerAllHealthy(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.Register(&HealthCheck{
		Name:      "db",
		CheckFunc: func(context.Context) error { return nil },
		Critical:  true,
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, resp.Status)
	assert.Equal(t, "OK", resp.Checks["db"].Message)
}

func TestHealthCheckerCriticalFailure(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.Register(&HealthCheck{
		Name:      "db",
		CheckFunc: func(context.Context) error { return errors.New("connection refused") },
		Critical:  true,
	})
	hc.Register(&HealthCheck{
		Name:      "smtp",
		CheckFunc: func(context.Context) error { return errors.New("timeout") },
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
	assert.Equal(t, HealthStatusUnhealthy, resp.Checks["db"].Status)
	assert.Equal(t, HealthStatusDegraded, resp.Checks["smtp"].Status)
}

func TestHealthCheckerTimeout(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.Register(&HealthCheck{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Critical: true,
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
}

func TestHealthHandlers(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.Register(&HealthCheck{
		Name:      "ok",
		CheckFunc: func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	hc.Handler()(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("Authorization=Basic abc, X-Tenant=clinic")
	require.Len(t, headers, 2)
	assert.Equal(t, "Basic abc", headers["Authorization"])
	assert.Equal(t, "clinic", headers["X-Tenant"])
	assert.Nil(t, parseHeaders(""))
}

func TestInitTracingDisabled(t *testing.T) {
	require.NoError(t, InitTracing(TracingConfig{Enabled: false}))
	require.NoError(t, ShutdownTracing(context.Background()))
}

func TestMetricsRecorders(t *testing.T) {
	InitMetrics()
	RecordTurn("triage", "completed", 120*time.Millisecond)
	RecordHandoff("triage", "appointment")
	RecordToolCall("verify_user", "ok", 5*time.Millisecond)
	RecordModelRequest("openai", "ok", 100, 20)
	RecordHTTPRequest("POST", "/chat", "200")
	WSConnectionOpened()
	WSConnectionClosed()
}
