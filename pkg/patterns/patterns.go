// Package patterns provides the semantic pattern layer: named, reinforced
// observations tracked on top of the vector store, with duplicate matching
// and lazy greedy clustering.
//
// A pattern is a short free-text description ("user prefers tabs") plus
// bookkeeping: when it was first seen, how often it recurred, and how much
// confidence it has accumulated. All similarity thresholds derive from the
// golden-ratio constant family in pkg/phi.
package patterns

import (
	"time"

	"github.com/diogenlabs/semvec/pkg/phi"
)

// PatternMetadata is the bookkeeping carried by every pattern.
type PatternMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	// Occurrences counts how many times the pattern has been re-added or
	// reinforced. Frequent patterns become centroid candidates first.
	Occurrences int `json:"occurrences"`
	// Confidence grows with reinforcement and is capped at 1/φ; a
	// pattern never fully trusts itself.
	Confidence float64 `json:"confidence"`
	// Extra is an open bag for caller-defined fields.
	Extra map[string]any `json:"extra,omitempty"`
}

// Pattern is a tracked semantic observation.
type Pattern struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Metadata    PatternMetadata `json:"metadata"`
}

// Cluster groups patterns around a centroid. Clusters are ephemeral: they
// are discarded and lazily rebuilt whenever a pattern is added or removed.
type Cluster struct {
	ID       string    `json:"id"`
	Centroid Pattern   `json:"centroid"`
	Members  []Pattern `json:"members"`
}

// Match pairs a pattern with its similarity to a query.
type Match struct {
	Pattern Pattern `json:"pattern"`
	Score   float64 `json:"score"`
}

// Config holds the matcher parameters.
type Config struct {
	// Name labels this matcher instance in metrics. Defaults to
	// "default".
	Name string `json:"name" yaml:"name"`
	// MatchThreshold is the default similarity floor for FindSimilar.
	// Defaults to 1/φ² (0.382).
	MatchThreshold float64 `json:"match_threshold" yaml:"match_threshold"`
	// ClusterThreshold is the default threshold for MatchExisting and
	// ClusterPatterns. Defaults to 1/φ (0.618).
	ClusterThreshold float64 `json:"cluster_threshold" yaml:"cluster_threshold"`
	// InitialConfidence is assigned to newly created patterns.
	// Defaults to 1/φ² and is capped at 1/φ.
	InitialConfidence float64 `json:"initial_confidence" yaml:"initial_confidence"`
}

// DefaultConfig returns the standard φ-derived thresholds.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		MatchThreshold:    phi.Inv2,
		ClusterThreshold:  phi.Inv,
		InitialConfidence: phi.Inv2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = d.MatchThreshold
	}
	if c.ClusterThreshold <= 0 {
		c.ClusterThreshold = d.ClusterThreshold
	}
	if c.InitialConfidence <= 0 {
		c.InitialConfidence = d.InitialConfidence
	}
	if c.InitialConfidence > phi.MaxConfidence {
		c.InitialConfidence = phi.MaxConfidence
	}
	return c
}

// Stats counts matcher operations.
type Stats struct {
	PatternsAdded   uint64 `json:"patterns_added"`
	PatternsRemoved uint64 `json:"patterns_removed"`
	Reinforcements  uint64 `json:"reinforcements"`
	ClusterRebuilds uint64 `json:"cluster_rebuilds"`
}
