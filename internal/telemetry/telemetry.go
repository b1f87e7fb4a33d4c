// Package telemetry exposes Prometheus counters/gauges for the server,
// grounded on the retrieval pack's canonical-redis_exporter
// (exporter/exporter.go): a dedicated prometheus.Registry plus explicit
// metric construction, rather than the default global registry, so tests
// can instantiate independent Metrics values without collisions.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the server updates on the command and
// replication hot paths.
type Metrics struct {
	Registry *prometheus.Registry

	CommandsTotal      *prometheus.CounterVec
	CommandErrorsTotal *prometheus.CounterVec
	ConnectedClients   prometheus.Gauge
	BlockedClients     prometheus.Gauge
	KeyspaceKeys       *prometheus.GaugeVec
	ReplicationLagSeq  prometheus.Gauge
	ReplicationState   *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sabled",
			Name:      "commands_total",
			Help:      "Total commands processed, by command name.",
		}, []string{"command"}),
		CommandErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sabled",
			Name:      "command_errors_total",
			Help:      "Total commands that returned an error reply, by command name.",
		}, []string{"command"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sabled",
			Name:      "connected_clients",
			Help:      "Number of client connections currently open.",
		}),
		BlockedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sabled",
			Name:      "blocked_clients",
			Help:      "Number of clients currently blocked on a list pop.",
		}),
		KeyspaceKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sabled",
			Name:      "keyspace_keys",
			Help:      "Approximate number of keys, by database index.",
		}, []string{"db"}),
		ReplicationLagSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sabled",
			Name:      "replication_lag_sequence",
			Help:      "Difference between the primary's and this replica's applied sequence.",
		}),
		ReplicationState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sabled",
			Name:      "replication_state",
			Help:      "1 for the current replication state, 0 otherwise, by state name.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.CommandErrorsTotal,
		m.ConnectedClients,
		m.BlockedClients,
		m.KeyspaceKeys,
		m.ReplicationLagSeq,
		m.ReplicationState,
	)
	return m
}

// Handler returns the promhttp handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

// ObserveCommand records one dispatched command's outcome.
func (m *Metrics) ObserveCommand(name string, errored bool) {
	m.CommandsTotal.WithLabelValues(name).Inc()
	if errored {
		m.CommandErrorsTotal.WithLabelValues(name).Inc()
	}
}

// SetReplicationState zeroes every known state and sets only cur to 1, so
// the gauge vector always reflects exactly one active state.
func (m *Metrics) SetReplicationState(all []string, cur string) {
	for _, s := range all {
		v := 0.0
		if s == cur {
			v = 1.0
		}
		m.ReplicationState.WithLabelValues(s).Set(v)
	}
}
