package admin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/telemetry"
)

func TestHealthz(t *testing.T) {
	r := New(telemetry.New(), nil, zap.NewNop())
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	m := telemetry.New()
	m.ObserveCommand("get", false)
	r := New(m, nil, zap.NewNop())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "sabled_commands_total")
}

func TestDebugInfoUsesSnapshot(t *testing.T) {
	snap := func() any { return map[string]string{"role": "primary"} }
	r := New(telemetry.New(), snap, zap.NewNop())

	req := httptest.NewRequest("GET", "/debug/info", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "role")
}
