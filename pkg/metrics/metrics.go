// Package metrics holds this module's Prometheus collectors, registered
// through promauto the same way the "edge_mcp" metrics package in the
// retrieved pack does it. The teacher exposes promhttp.Handler() at
// /metrics (internal/app/http.go) but never defines any collectors of
// its own beyond pebble's reflective dump (pkg/store/metrics.go), which
// the maintenance sweep now polls into the Pebble* gauges below; this
// package is otherwise new, grounded on the edge-mcp metrics package's
// namespacing and vector-metric conventions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docstore"

// Metrics holds every collector this engine registers.
type Metrics struct {
	SplitsTotal         *prometheus.CounterVec
	SplitDuration       prometheus.Histogram
	ConflictsTotal      *prometheus.CounterVec
	VisibilityChecks    *prometheus.CounterVec
	CommitDuration      prometheus.Histogram
	FindDuration        prometheus.Histogram
	PreviousDocsCreated prometheus.Counter
	MissingPrevious     prometheus.Counter
	StoreCacheHits      prometheus.Counter
	StoreCacheMisses    prometheus.Counter

	PebbleWALBytes          prometheus.Gauge
	PebbleWALFsyncP99Ms     prometheus.Gauge
	PebbleL0Files           prometheus.Gauge
	PebbleL0Bytes           prometheus.Gauge
	PebbleCompactionBacklog prometheus.Gauge
}

var defaultLatencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// New creates and registers every collector against the default registry.
// Call it once at process startup; registering twice panics.
func New() *Metrics {
	return &Metrics{
		SplitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "splits_total",
				Help:      "Number of documents processed by the split maintenance pass, by outcome.",
			},
			[]string{"outcome"},
		),
		SplitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "split_duration_seconds",
				Help:      "Time spent on one full split maintenance sweep.",
				Buckets:   defaultLatencyBuckets,
			},
		),
		ConflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Number of commit attempts rejected by the conflict detector, by key.",
			},
			[]string{"key"},
		),
		VisibilityChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visibility_checks_total",
				Help:      "Number of visibility resolutions performed, by result.",
			},
			[]string{"result"},
		),
		CommitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time spent applying one UpdateOp to the store end to end.",
				Buckets:   defaultLatencyBuckets,
			},
		),
		FindDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "find_duration_seconds",
				Help:      "Time spent loading a document by id through the store's Find.",
				Buckets:   defaultLatencyBuckets,
			},
		),
		PreviousDocsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "previous_documents_created_total",
				Help:      "Number of previous documents written by the split maintenance pass.",
			},
		),
		MissingPrevious: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_previous_documents_total",
				Help:      "Number of ErrMissingPreviousDocument events observed, rate-limited at the source.",
			},
		),
		StoreCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_cache_hits_total",
				Help:      "Number of Find calls served from the process-local document cache.",
			},
		),
		StoreCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_cache_misses_total",
				Help:      "Number of Find calls that fell through to Pebble.",
			},
		),
		PebbleWALBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pebble_wal_bytes",
				Help:      "On-disk size of the Pebble WAL, as last polled by the maintenance sweep.",
			},
		),
		PebbleWALFsyncP99Ms: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pebble_wal_fsync_p99_milliseconds",
				Help:      "Pebble's reported p99 WAL fsync latency, as last polled.",
			},
		),
		PebbleL0Files: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pebble_l0_files",
				Help:      "Number of L0 sstables, as last polled.",
			},
		),
		PebbleL0Bytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pebble_l0_bytes",
				Help:      "Total size of L0 sstables, as last polled.",
			},
		),
		PebbleCompactionBacklog: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pebble_compaction_backlog_bytes",
				Help:      "Pebble's reported pending compaction debt, as last polled.",
			},
		),
	}
}

// ObserveSince records dur (time.Since(start)) in seconds against h.
func ObserveSince(h prometheus.Histogram, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
