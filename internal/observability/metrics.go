package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spilink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	linkPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilink",
			Subsystem: "link",
			Name:      "packets_received_total",
			Help:      "Response packets received, by leading marker class.",
		},
		[]string{"marker"},
	)
	linkRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilink",
			Subsystem: "link",
			Name:      "requests_total",
			Help:      "Logical link requests, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	linkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spilink",
			Subsystem: "link",
			Name:      "request_duration_seconds",
			Help:      "Logical link request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "outcome"},
	)
	linkBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilink",
			Subsystem: "link",
			Name:      "bytes_received_total",
			Help:      "Reassembled message bytes handed to callers.",
		},
		[]string{"op"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, linkPackets, linkRequests, linkDuration, linkBytes)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPacket(marker string) {
	RegisterMetrics()
	linkPackets.WithLabelValues(marker).Inc()
}

func RecordLinkRequest(op, outcome string, bytes int, duration time.Duration) {
	RegisterMetrics()
	linkRequests.WithLabelValues(op, outcome).Inc()
	linkDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
	if bytes > 0 {
		linkBytes.WithLabelValues(op).Add(float64(bytes))
	}
}
