// Package metrics holds the Prometheus collectors for a batch run. Batch
// commands have no scrape endpoint, so the registry is written to a
// node_exporter textfile when a run finishes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of this package.
var Registry = prometheus.NewRegistry()

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roo_ephemeris_fetch_total",
			Help: "Total number of ephemeris download attempts.",
		},
		[]string{"result"},
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roo_ephemeris_fetch_duration_seconds",
			Help:    "Ephemeris download attempt duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	fetchBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roo_ephemeris_fetch_bytes_total",
			Help: "Total bytes of ephemeris products downloaded.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roo_ephemeris_cache_hits_total",
			Help: "Total ephemeris lookups served from the local cache.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roo_ephemeris_cache_misses_total",
			Help: "Total ephemeris lookups that required a download.",
		},
	)

	filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roo_files_total",
			Help: "Telescope files processed, by outcome.",
		},
		[]string{"outcome"},
	)

	recordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roo_records_total",
			Help: "Total comparison records written.",
		},
	)

	extrapolatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roo_records_extrapolated_total",
			Help: "Comparison records whose ephemeris was extrapolated outside the product span.",
		},
	)

	offsetDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roo_sweep_offset_duration_seconds",
			Help:    "Wall time to process one sweep offset.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(fetchTotal)
	Registry.MustRegister(fetchDurationSeconds)
	Registry.MustRegister(fetchBytesTotal)
	Registry.MustRegister(cacheHitsTotal)
	Registry.MustRegister(cacheMissesTotal)
	Registry.MustRegister(filesTotal)
	Registry.MustRegister(recordsTotal)
	Registry.MustRegister(extrapolatedTotal)
	Registry.MustRegister(offsetDurationSeconds)
}

// ObserveFetch records one download attempt.
func ObserveFetch(d time.Duration, bytes int, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	fetchTotal.WithLabelValues(result).Inc()
	fetchDurationSeconds.Observe(d.Seconds())
	if ok {
		fetchBytesTotal.Add(float64(bytes))
	}
}

// IncCacheHits increments the ephemeris cache hit counter.
func IncCacheHits() {
	cacheHitsTotal.Inc()
}

// IncCacheMisses increments the ephemeris cache miss counter.
func IncCacheMisses() {
	cacheMissesTotal.Inc()
}

// RecordFile counts one telescope file by outcome ("written", "skipped", "failed").
func RecordFile(outcome string) {
	filesTotal.WithLabelValues(outcome).Inc()
}

// AddRecords counts written records and how many of them were extrapolated.
func AddRecords(n, extrapolated int) {
	recordsTotal.Add(float64(n))
	extrapolatedTotal.Add(float64(extrapolated))
}

// ObserveOffset records the time spent on one sweep offset.
func ObserveOffset(d time.Duration) {
	offsetDurationSeconds.Observe(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically, for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
