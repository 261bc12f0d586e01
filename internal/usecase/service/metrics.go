package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_write_events_enqueued_total",
		Help: "Write events appended to the write log by type",
	}, []string{"type"})

	enqueueErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_write_enqueue_errors_total",
		Help: "Failed appends to the write log",
	})

	processedBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_write_batches_total",
		Help: "Write batches processed by result",
	}, []string{"result"})

	claimedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_write_events_claimed_total",
		Help: "Write events admitted by the idempotency ledger",
	})

	duplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_write_events_duplicate_total",
		Help: "Write events skipped because their request id was already claimed",
	})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forum_write_events_dropped_total",
		Help: "Write events consumed without effect because of stale or invalid references",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forum_write_batch_duration_seconds",
		Help:    "Claim and apply duration of one write batch",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	cacheVersionBumps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_cache_version_bumps_total",
		Help: "Cache family version bumps by family kind",
	}, []string{"family"})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_cache_requests_total",
		Help: "Versioned cache lookups by family kind and result",
	}, []string{"family", "result"})
)
