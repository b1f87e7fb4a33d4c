package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserveCommandIncrementsCounters(t *testing.T) {
	m := New()
	m.ObserveCommand("get", false)
	m.ObserveCommand("set", true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "sabled_commands_total")
	require.Contains(t, rec.Body.String(), "sabled_command_errors_total")
}

func TestSetReplicationStateExclusive(t *testing.T) {
	m := New()
	m.SetReplicationState([]string{"idle", "streaming"}, "streaming")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `state="streaming"} 1`)
}
