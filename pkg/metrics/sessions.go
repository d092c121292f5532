package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ggnetd_sessions_started_total",
			Help: "Total diskless boot sessions started, by session type.",
		},
		[]string{"type"},
	)

	sessionsStopped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ggnetd_sessions_stopped_total",
			Help: "Total sessions stopped, by terminal status (stopped, error, timeout).",
		},
		[]string{"status"},
	)

	sessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ggnetd_sessions_active",
			Help: "Sessions currently in status=starting or status=active.",
		},
	)

	sessionStartDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ggnetd_session_start_seconds",
			Help:    "Time to provision a session's target, iPXE script, and DHCP reservation.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveSessionStarted records a successful Start, including the
// end-to-end provisioning duration.
func ObserveSessionStarted(sessionType string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	sessionsStarted.WithLabelValues(sessionType).Inc()
	sessionStartDuration.Observe(d.Seconds())
	sessionsActive.Inc()
}

// ObserveSessionStopped records a session leaving the live set, regardless
// of which terminal status it lands in.
func ObserveSessionStopped(status string) {
	if !IsEnabled() {
		return
	}
	sessionsStopped.WithLabelValues(status).Inc()
	sessionsActive.Dec()
}
