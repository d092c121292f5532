// Package metrics defines the Prometheus collectors the control plane
// registers for session lifecycle, image conversion, and external-tool call
// latency. Per spec scope, no HTTP handler in this repository serves these
// collectors; they are registered against Registry so an operator-supplied
// exporter (or a future internal endpoint) can scrape them, the same
// enabled-gate shape the teacher's pkg/metrics/pkg/metrics/prometheus split
// uses for its own collectors, simplified here to a single package since
// ggnetd's metrics have no import-cycle to avoid.
package metrics

import "sync/atomic"

var enabled atomic.Bool

// Init enables or disables metric collection. Disabled is the zero value,
// so calling Init is optional in contexts (most tests) that don't care.
func Init(on bool) {
	enabled.Store(on)
}

// IsEnabled reports whether metric collection was turned on via Init.
func IsEnabled() bool {
	return enabled.Load()
}
