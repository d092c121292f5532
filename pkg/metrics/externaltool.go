package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	externalToolCalls = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ggnetd_external_tool_calls_total",
			Help: "Total subprocess invocations of an external tool, by tool name and outcome.",
		},
		[]string{"tool", "outcome"}, // outcome: "ok", "error"
	)

	externalToolDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ggnetd_external_tool_call_seconds",
			Help:    "Latency of a subprocess invocation of an external tool, by tool name.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// ObserveExternalTool records the latency and outcome of one subprocess
// invocation of a collaborator binary (targetcli, dhcpd -t, qemu-img, ...).
func ObserveExternalTool(tool string, d time.Duration, err error) {
	if !IsEnabled() {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	externalToolCalls.WithLabelValues(tool, outcome).Inc()
	externalToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}
