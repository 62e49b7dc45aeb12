package patterns

import (
	"sort"

	"github.com/diogenlabs/semvec/pkg/core/hnsw"
	"github.com/diogenlabs/semvec/pkg/metrics"
)

// ClusterOptions tunes a ClusterPatterns call. Zero values fall back to the
// matcher's ClusterThreshold, a minimum size of 1, and no cluster cap.
type ClusterOptions struct {
	// Threshold is the minimum similarity to a cluster's centroid for a
	// pattern to join it.
	Threshold float64
	// MinSize drops clusters with fewer members after the pass.
	MinSize int
	// MaxClusters caps how many clusters may be opened. Once reached,
	// unmatched patterns stay unclustered.
	MaxClusters int
}

func (o ClusterOptions) withDefaults(cfg Config) ClusterOptions {
	if o.Threshold <= 0 {
		o.Threshold = cfg.ClusterThreshold
	}
	if o.MinSize <= 0 {
		o.MinSize = 1
	}
	return o
}

// ClusterPatterns groups the tracked patterns with a single greedy pass.
//
// Patterns are visited by descending occurrence count, so the most frequent
// patterns become centroid candidates first. Each pattern joins the first
// existing cluster whose centroid it matches at or above the threshold,
// measured by a similarity search restricted to the centroid's id; failing
// that it opens a new cluster with itself as centroid, cap permitting.
// Clusters smaller than MinSize are dropped afterwards.
//
// The result is cached until a pattern add or remove invalidates it, or
// until it is requested with different options. The pass costs
// O(patterns × open clusters), which is fine at hundreds to low thousands
// of patterns; this is not a general large-scale clustering algorithm.
func (m *Matcher) ClusterPatterns(opts ClusterOptions) ([]Cluster, error) {
	m.mu.Lock()
	opts = opts.withDefaults(m.cfg)
	if m.clustersOK && opts == m.clusterOpts {
		cached := cloneClusters(m.clusters)
		m.mu.Unlock()
		return cached, nil
	}

	gen := m.generation
	ordered := make([]Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		ordered = append(ordered, *p)
	}
	m.mu.Unlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Metadata.Occurrences != ordered[j].Metadata.Occurrences {
			return ordered[i].Metadata.Occurrences > ordered[j].Metadata.Occurrences
		}
		return ordered[i].ID < ordered[j].ID
	})

	var clusters []Cluster
	for _, p := range ordered {
		joined := false
		for i := range clusters {
			sim, err := m.similarityToCentroid(p, clusters[i].Centroid.ID)
			if err != nil {
				return nil, err
			}
			if sim >= opts.Threshold {
				clusters[i].Members = append(clusters[i].Members, p)
				joined = true
				break
			}
		}
		if !joined && (opts.MaxClusters <= 0 || len(clusters) < opts.MaxClusters) {
			clusters = append(clusters, Cluster{
				ID:       "cluster:" + p.ID,
				Centroid: p,
				Members:  []Pattern{p},
			})
		}
	}

	kept := clusters[:0]
	for _, c := range clusters {
		if len(c.Members) >= opts.MinSize {
			kept = append(kept, c)
		}
	}
	clusters = kept

	m.mu.Lock()
	// Only cache if no add/remove slipped in while the pass ran.
	if gen == m.generation {
		m.clusters = cloneClusters(clusters)
		m.clusterOpts = opts
		m.clustersOK = true
	}
	m.stats.ClusterRebuilds++
	m.mu.Unlock()
	metrics.ClusterRebuilds.WithLabelValues(m.cfg.Name).Inc()

	return clusters, nil
}

// similarityToCentroid measures how close a pattern sits to a specific
// centroid by searching the index with the result set restricted to that
// centroid. Both vectors are already stored, so no embedding is needed. A
// search that fails to reach the centroid reports similarity 0, which the
// caller treats as "below threshold".
func (m *Matcher) similarityToCentroid(p Pattern, centroidID string) (float64, error) {
	idx := m.store.Index()
	vec, _, ok := idx.Get(p.ID)
	if !ok {
		return 0, nil
	}
	hits, err := idx.Search(vec, 1, &hnsw.SearchOptions{
		Filter: func(md map[string]any) bool {
			return md["pattern_id"] == centroidID
		},
	})
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}
	return hits[0].Similarity, nil
}

func cloneClusters(clusters []Cluster) []Cluster {
	out := make([]Cluster, len(clusters))
	for i, c := range clusters {
		out[i] = Cluster{
			ID:       c.ID,
			Centroid: c.Centroid,
			Members:  append([]Pattern(nil), c.Members...),
		}
	}
	return out
}
