// Package metrics exposes prometheus instruments for the query and
// aggregation pipeline. Collectors are registered on the default registry;
// embedding applications decide whether and where to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreQueries counts queries issued per collection.
	StoreQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kharcha_store_queries_total",
		Help: "Document store queries issued, by collection.",
	}, []string{"collection"})

	// BatchChunks counts chunk queries issued by the batched fetcher.
	BatchChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kharcha_batch_chunks_total",
		Help: "Chunk queries issued by batched IN fetches.",
	})

	// AggregationDuration observes how long a full report aggregation takes.
	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kharcha_aggregation_duration_seconds",
		Help:    "Time spent aggregating an expense report.",
		Buckets: prometheus.DefBuckets,
	})

	// CacheRefreshes counts stats cache recomputations by outcome.
	CacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kharcha_cache_refreshes_total",
		Help: "Stats cache recomputations, by outcome (ok, error, stale).",
	}, []string{"outcome"})
)
