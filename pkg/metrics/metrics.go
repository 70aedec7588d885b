package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hips_tile_requests_total",
		Help: "Total number of tiles requested by visibility passes",
	}, []string{"survey"})

	TileDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hips_tile_dispatches_total",
		Help: "Total number of tile loads submitted to the loader",
	}, []string{"survey", "source"})

	TileCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hips_tile_completions_total",
		Help: "Total number of tile load completions by outcome",
	}, []string{"survey", "outcome"})

	TileEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hips_tile_evictions_total",
		Help: "Total number of tiles evicted under memory pressure",
	}, []string{"survey"})

	CacheUsedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hips_cache_used_bytes",
		Help: "Bytes held by ready tiles",
	}, []string{"survey"})

	// Disk cache metrics
	DiskWriteBackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hips_disk_write_back_failures_total",
		Help: "Total number of evicted tiles that could not be written to disk cache",
	})

	DiskOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hips_disk_operation_duration_seconds",
		Help:    "Duration of disk cache operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"backend", "operation"})

	LoadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hips_tile_load_latency_seconds",
		Help:    "Latency of tile fetch and decode in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	CoverageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hips_coverage_operation_duration_seconds",
		Help:    "Duration of coverage set operations in seconds",
		Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
	}, []string{"operation"})
)
