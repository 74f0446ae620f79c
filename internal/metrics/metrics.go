package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodeInstancesTotal counts per-instance decode attempts by outcome
	DecodeInstancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_decode_instances_total",
			Help: "Total number of record instance decodes by outcome",
		},
		[]string{"status"},
	)

	// DecodeFieldsSkippedTotal counts fields dropped by partial decodes
	DecodeFieldsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_decode_fields_skipped_total",
			Help: "Total number of fields skipped because a read overran the buffer",
		},
	)

	// DiffOperationsTotal counts diff computations by mode
	DiffOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_diff_operations_total",
			Help: "Total number of diff computations by mode (nested, bytes, words, records)",
		},
		[]string{"mode"},
	)

	// TrackerPointsVisitedTotal counts observation points consumed by trackers
	TrackerPointsVisitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_tracker_points_visited_total",
			Help: "Total number of observation points visited during timeline tracking",
		},
	)

	// TrackerDeltasEmittedTotal counts deltas appended to instance logs
	TrackerDeltasEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_tracker_deltas_emitted_total",
			Help: "Total number of deltas appended to per-instance change logs",
		},
	)

	// SchemaCacheHitsTotal counts flatten-cache hits
	SchemaCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_schema_cache_hits_total",
			Help: "Total number of flattened-schema cache hits",
		},
	)

	// SchemaCacheMissesTotal counts flatten-cache misses
	SchemaCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_schema_cache_misses_total",
			Help: "Total number of flattened-schema cache misses",
		},
	)

	// SchemaFlattenDurationSeconds measures flatten latency
	SchemaFlattenDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "framesift_schema_flatten_duration_seconds",
			Help:    "Duration of schema flattening",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WorkflowOperationsTotal counts inspection workflow runs by outcome
	WorkflowOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_workflow_operations_total",
			Help: "Total number of inspection workflow executions",
		},
		[]string{"workflow", "status"},
	)

	// WorkflowDurationSeconds measures inspection workflow latency
	WorkflowDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framesift_workflow_duration_seconds",
			Help:    "Duration of inspection workflow executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	// FlightOperationsTotal counts the number of Flight operations
	FlightOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_flight_operations_total",
			Help: "The total number of processed Arrow Flight operations",
		},
		[]string{"method", "status"},
	)

	// FlightDurationSeconds measures the latency of Flight operations
	FlightDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framesift_flight_duration_seconds",
			Help:    "Duration of Arrow Flight operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ExportRowsWrittenTotal counts rows written by exporters
	ExportRowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_export_rows_written_total",
			Help: "Total number of rows written by exporters",
		},
		[]string{"format"},
	)

	// RateLimitRequestsTotal counts requests seen by the rate limiter
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_rate_limit_requests_total",
			Help: "Total number of requests by rate limiter outcome",
		},
		[]string{"status"},
	)
)
