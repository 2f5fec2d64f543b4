// Package monitoring - metrics.go provides Prometheus collectors.
//
// DESIGN: One Metrics value per client, holding every collector the
// fetch pipeline touches. Nothing registers globally: callers hand in
// a prometheus.Registerer, so two clients in one process never
// collide. All record methods are safe on a nil receiver, which lets
// components treat metrics as optional.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Download outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeAbsent = "absent"
	OutcomeFailed = "failed"
)

// Metrics collects operational metrics for one client.
type Metrics struct {
	downloads        *prometheus.CounterVec
	downloadSeconds  *prometheus.HistogramVec
	downloadBytes    *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	retries          prometheus.Counter
	fallbacks        prometheus.Counter
	parseWarnings    *prometheus.CounterVec
	schemaDrift      *prometheus.CounterVec
	warehouseQueries *prometheus.CounterVec
}

// NewMetrics creates the collector set. Call Register to attach it to
// a registry; unregistered collectors still count, they are just never
// scraped.
func NewMetrics() *Metrics {
	return &Metrics{
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gdelt_downloads_total",
			Help: "Artifact fetch attempts by record type and outcome",
		}, []string{"type", "outcome"}),
		downloadSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gdelt_download_seconds",
			Help:    "Wall time of successful artifact downloads",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"type"}),
		downloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gdelt_download_bytes_total",
			Help: "Compressed bytes fetched from the file server",
		}, []string{"type"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdelt_cache_hits_total",
			Help: "Artifact reads served from the disk cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdelt_cache_misses_total",
			Help: "Artifact reads that went to the network",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdelt_retries_total",
			Help: "HTTP attempts beyond the first, across all requests",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdelt_fallbacks_total",
			Help: "Fetches that fell back from files to the warehouse",
		}),
		parseWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gdelt_parse_warnings_total",
			Help: "Malformed lines skipped or surfaced during parsing",
		}, []string{"type"}),
		schemaDrift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gdelt_schema_drift_total",
			Help: "Upstream fields observed that no model declares",
		}, []string{"type"}),
		warehouseQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gdelt_warehouse_queries_total",
			Help: "Warehouse queries by outcome",
		}, []string{"outcome"}),
	}
}

// Register attaches all collectors to reg. Call at most once per
// registry; a second call reports prometheus.AlreadyRegisteredError.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		m.downloads,
		m.downloadSeconds,
		m.downloadBytes,
		m.cacheHits,
		m.cacheMisses,
		m.retries,
		m.fallbacks,
		m.parseWarnings,
		m.schemaDrift,
		m.warehouseQueries,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordDownload records one artifact fetch attempt. Bytes and elapsed
// are only counted for successful downloads.
func (m *Metrics) RecordDownload(recordType, outcome string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(recordType, outcome).Inc()
	if outcome == OutcomeOK {
		m.downloadBytes.WithLabelValues(recordType).Add(float64(bytes))
		m.downloadSeconds.WithLabelValues(recordType).Observe(elapsed.Seconds())
	}
}

// RecordCacheHit records an artifact served from disk.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss records an artifact that had to be fetched.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordRetry records one retried HTTP attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// RecordFallback records a files-to-warehouse fallback.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// RecordParseWarning records a malformed line for the given record type.
func (m *Metrics) RecordParseWarning(recordType string) {
	if m == nil {
		return
	}
	m.parseWarnings.WithLabelValues(recordType).Inc()
}

// RecordSchemaDrift records an undeclared upstream field sighting.
func (m *Metrics) RecordSchemaDrift(recordType string) {
	if m == nil {
		return
	}
	m.schemaDrift.WithLabelValues(recordType).Inc()
}

// RecordWarehouseQuery records a warehouse query outcome.
func (m *Metrics) RecordWarehouseQuery(outcome string) {
	if m == nil {
		return
	}
	m.warehouseQueries.WithLabelValues(outcome).Inc()
}
