package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors shared by the transport and the scan engine.
// A nil *Metrics is valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	RPCRequests     *prometheus.CounterVec
	RPCLatency      *prometheus.HistogramVec
	RPCRateLimited  prometheus.Counter
	FetchRetries    prometheus.Counter
	BlocksScanned   *prometheus.CounterVec
	ProfilesBuilt   prometheus.Counter
	ProbeFailures   *prometheus.CounterVec
	ToolInvocations *prometheus.CounterVec
	WSClients       prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchmon_rpc_requests_total",
			Help: "Total number of JSON-RPC requests by method and outcome",
		}, []string{"method", "outcome"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watchmon_rpc_latency_seconds",
			Help:    "JSON-RPC round trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchmon_rpc_rate_limited_total",
			Help: "Total number of HTTP 429 responses received from the node",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchmon_fetch_retries_total",
			Help: "Total number of block fetch retries",
		}),
		BlocksScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchmon_blocks_scanned_total",
			Help: "Total number of blocks fetched, by scan kind",
		}, []string{"scan"}),
		ProfilesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchmon_profiles_built_total",
			Help: "Total number of dApp profiles built",
		}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchmon_probe_failures_total",
			Help: "Total number of failed profiling steps, by step",
		}, []string{"step"}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchmon_tool_invocations_total",
			Help: "Total number of tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchmon_ws_clients",
			Help: "Current number of connected WebSocket clients",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.RPCRequests, m.RPCLatency, m.RPCRateLimited, m.FetchRetries, m.BlocksScanned,
		m.ProfilesBuilt, m.ProbeFailures, m.ToolInvocations, m.WSClients,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveRPC(method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(method, outcome).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(took.Seconds())
	if outcome == "rate_limited" {
		m.RPCRateLimited.Inc()
	}
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

func (m *Metrics) BlockScanned(scan string) {
	if m == nil {
		return
	}
	m.BlocksScanned.WithLabelValues(scan).Inc()
}

func (m *Metrics) ProfileBuilt() {
	if m == nil {
		return
	}
	m.ProfilesBuilt.Inc()
}

func (m *Metrics) ProbeFailed(step string) {
	if m == nil {
		return
	}
	m.ProbeFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) ToolInvoked(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) WSConnected(delta float64) {
	if m == nil {
		return
	}
	m.WSClients.Add(delta)
}
