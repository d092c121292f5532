package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conversionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ggnetd_image_conversions_total",
			Help: "Total image conversions, by terminal result (ready, error).",
		},
		[]string{"result"},
	)

	conversionDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ggnetd_image_conversion_seconds",
			Help:    "Duration of a single image conversion subprocess invocation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1s .. ~9h
		},
	)
)

// ObserveConversion records one conversion worker attempt's outcome and
// wall-clock duration.
func ObserveConversion(result string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	conversionsTotal.WithLabelValues(result).Inc()
	conversionDuration.Observe(d.Seconds())
}
