// Package metrics exposes Prometheus instrumentation for the semantic
// engine. Metrics are registered through promauto, so importing the package
// is enough to make them visible on the default registry; serving them is a
// caller concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VectorsStored tracks the number of documents currently held per
	// store instance.
	VectorsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "semvec_vectors_stored",
			Help: "Number of documents currently held in the vector store",
		},
		[]string{"store"},
	)

	// SearchesTotal counts text searches, labeled by store.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semvec_searches_total",
			Help: "Total number of text searches executed",
		},
		[]string{"store"},
	)

	// SearchDuration measures end-to-end search latency, embedding
	// included. Buckets span cache-hit microseconds to remote-embedder
	// seconds.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semvec_search_duration_seconds",
			Help:    "Duration of text searches in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"store"},
	)

	// EmbedCacheHits counts embedding cache hits per store.
	EmbedCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semvec_embed_cache_hits_total",
			Help: "Total number of embedding cache hits",
		},
		[]string{"store"},
	)

	// EmbedCacheMisses counts embedding cache misses per store.
	EmbedCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semvec_embed_cache_misses_total",
			Help: "Total number of embedding cache misses",
		},
		[]string{"store"},
	)

	// PatternsTracked gauges the number of live patterns per matcher.
	PatternsTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "semvec_patterns_tracked",
			Help: "Number of patterns currently tracked by the matcher",
		},
		[]string{"matcher"},
	)

	// ClusterRebuilds counts lazy clustering recomputations per matcher.
	ClusterRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semvec_cluster_rebuilds_total",
			Help: "Total number of pattern clustering recomputations",
		},
		[]string{"matcher"},
	)
)
