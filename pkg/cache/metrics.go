package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache activity per bucket.
type Metrics struct {
	cacheHitsTotal        *prometheus.CounterVec
	downloadsTotal        *prometheus.CounterVec
	downloadBytesTotal    *prometheus.CounterVec
	downloadFailuresTotal *prometheus.CounterVec
	downloadDuration      *prometheus.HistogramVec
}

// NewMetrics creates the cache metrics and registers them with registerer.
// A nil registerer leaves them unregistered, so several fetchers can coexist
// in one process without colliding on the default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		cacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlasdata",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Local files whose digest already matched the remote object",
		}, []string{"bucket"}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlasdata",
			Subsystem: "cache",
			Name:      "downloads_total",
			Help:      "Objects transferred because the local copy was missing or stale",
		}, []string{"bucket"}),
		downloadBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlasdata",
			Subsystem: "cache",
			Name:      "download_bytes_total",
			Help:      "Bytes written into the local cache",
		}, []string{"bucket"}),
		downloadFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlasdata",
			Subsystem: "cache",
			Name:      "download_failures_total",
			Help:      "Failed cache fills by reason",
		}, []string{"bucket", "reason"}),
		downloadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlasdata",
			Subsystem: "cache",
			Name:      "download_duration_seconds",
			Help:      "Time spent transferring and verifying one object",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"bucket"}),
	}
}

func (m *Metrics) recordHit(bucket string) {
	m.cacheHitsTotal.WithLabelValues(bucket).Inc()
}

func (m *Metrics) recordDownload(bucket string, bytes int64, seconds float64) {
	m.downloadsTotal.WithLabelValues(bucket).Inc()
	m.downloadBytesTotal.WithLabelValues(bucket).Add(float64(bytes))
	m.downloadDuration.WithLabelValues(bucket).Observe(seconds)
}

func (m *Metrics) recordFailure(bucket, reason string) {
	m.downloadFailuresTotal.WithLabelValues(bucket, reason).Inc()
}
