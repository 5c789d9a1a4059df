package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfactl",
			Subsystem: "pipeline",
			Name:      "frames_total",
			Help:      "Completed frames by processing outcome.",
		},
		[]string{"outcome"},
	)
	eventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfactl",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Authentication events by method classification.",
		},
		[]string{"method"},
	)
	transitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mfactl",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Authenticator state transitions.",
		},
	)
	trustEntropy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mfactl",
			Subsystem: "trust",
			Name:      "diversity_entropy",
			Help:      "State-diversity entropy (D_EC).",
		},
	)
	trustStability = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mfactl",
			Subsystem: "trust",
			Name:      "link_stability",
			Help:      "Link-stability score (BSSS).",
		},
	)
	trustComposite = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mfactl",
			Subsystem: "trust",
			Name:      "composite_index",
			Help:      "Composite trust index (IMSI).",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfactl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mfactl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesProcessed,
			eventsProcessed,
			transitionsTotal,
			trustEntropy,
			trustStability,
			trustComposite,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordFrame(outcome string) {
	RegisterMetrics()
	framesProcessed.WithLabelValues(outcome).Inc()
}

func RecordEvent(method string, transitioned bool) {
	RegisterMetrics()
	eventsProcessed.WithLabelValues(method).Inc()
	if transitioned {
		transitionsTotal.Inc()
	}
}

func RecordTrust(entropy, stability, composite float64) {
	RegisterMetrics()
	trustEntropy.Set(entropy)
	trustStability.Set(stability)
	trustComposite.Set(composite)
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
