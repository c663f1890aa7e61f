package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supactl_requests_total",
			Help: "Total number of HTTP requests sent to Supabase by method and status",
		},
		[]string{"method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supactl_request_duration_seconds",
			Help:    "Duration of HTTP requests sent to Supabase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supactl_fallbacks_total",
			Help: "Total number of times an operation substituted a default for a failed remote call",
		},
		[]string{"operation"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supactl_operation_errors_total",
			Help: "Total number of failed facade operations by operation",
		},
		[]string{"operation"},
	)
)

// ObserveRequest records one HTTP round trip. status 0 means no response was
// received and is recorded as "error".
func ObserveRequest(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	Requests.WithLabelValues(method, label).Inc()
	RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// WriteTextfile writes all registered metrics in the text exposition format,
// for the node_exporter textfile collector. A CLI run is too short-lived to
// be scraped.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
