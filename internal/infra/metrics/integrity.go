package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(integrityCallsLatencyMs) }

var integrityCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "integrity_api_call_latency_ms",
		Help:    "Integrity service call latency distribution in milliseconds.",
		Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"operation", "code"},
)

// ObserveIntegrityCall records one remote call; code 0 means a transport failure.
func ObserveIntegrityCall(operation string, code int, latencyMs int64) {
	integrityCallsLatencyMs.WithLabelValues(norm(operation), strconv.Itoa(code)).
		Observe(float64(latencyMs))
}
