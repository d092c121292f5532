package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the dedicated collector registry for ggnetd's own metrics,
// kept separate from prometheus.DefaultRegisterer so an embedding process
// (or a test run that constructs multiple stores) never collides with
// Go-runtime or other packages' default collectors.
var Registry = prometheus.NewRegistry()
