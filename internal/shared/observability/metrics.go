package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assettree_operation_seconds",
		Help:    "Time spent in application service operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assettree_sessions_active",
		Help: "Number of in-memory tree sessions.",
	})

	TreeNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assettree_tree_nodes",
		Help: "Node count of each session tree.",
	}, []string{"session"})

	BuildItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assettree_build_items_total",
		Help: "Items applied by tree builds, by outcome.",
	}, []string{"outcome"})

	DuplicateGroupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_duplicate_groups_total",
		Help: "Total number of conflicting (group, key) groups detected.",
	})

	PushItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assettree_push_items_total",
		Help: "Items submitted to the remote store, by outcome.",
	}, []string{"outcome"})

	PushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_push_failures_total",
		Help: "Pushes that failed because the remote store was unreachable.",
	})

	RenderCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_render_cache_hits_total",
		Help: "Renderings served from the render cache.",
	})

	RenderCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_render_cache_misses_total",
		Help: "Renderings computed because the cache had no entry.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_watcher_events_total",
		Help: "Total number of file system events received by the ingest watcher.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assettree_write_queue_depth",
		Help: "Current number of in-memory ledger writes waiting to be persisted.",
	})

	WriteSpoolDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assettree_write_spool_depth",
		Help: "Current number of persistent spool rows waiting to be applied.",
	})

	WriteQueueEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_enqueued_total",
		Help: "Total number of ledger writes accepted into the in-memory queue.",
	})

	WriteQueueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_dropped_total",
		Help: "Total number of ledger writes dropped from in-memory enqueue due to backpressure.",
	})

	WriteQueueSpilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_spilled_total",
		Help: "Total number of ledger writes spooled to persistent storage.",
	})

	WriteQueueRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_retry_total",
		Help: "Total number of persistent spool retries.",
	})

	WriteQueueApplyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_apply_errors_total",
		Help: "Total number of ledger batch apply errors.",
	})

	WriteQueueProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assettree_write_queue_processed_total",
		Help: "Total number of ledger writes successfully applied.",
	})

	WriteQueueFlushLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assettree_write_queue_flush_seconds",
		Help:    "Latency for applying a ledger write batch.",
		Buckets: prometheus.DefBuckets,
	})
)
