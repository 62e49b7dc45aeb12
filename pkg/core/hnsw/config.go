package hnsw

import (
	"errors"

	"github.com/diogenlabs/semvec/pkg/core/distance"
)

// LevelCap bounds the random level assignment. A retention probability of
// 1/φ makes levels beyond 32 astronomically unlikely; the cap only guards
// against pathological random sources.
const LevelCap = 32

var (
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the dimension established by the first insert.
	ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")
	// ErrCapacityExceeded is returned when inserting a new ID into an
	// index that already holds MaxElements entries.
	ErrCapacityExceeded = errors.New("hnsw: index is at capacity")
)

// Config holds the construction and search parameters of an index.
type Config struct {
	// M is the maximum number of neighbors kept per node per layer.
	M int `json:"m" yaml:"m"`
	// EfConstruction is the candidate-list width during insertion.
	EfConstruction int `json:"ef_construction" yaml:"ef_construction"`
	// EfSearch is the default candidate-list width during search.
	EfSearch int `json:"ef_search" yaml:"ef_search"`
	// Metric selects the distance function.
	Metric Metric `json:"metric" yaml:"metric"`
	// MaxElements caps the number of live entries. Zero means unbounded.
	MaxElements int `json:"max_elements" yaml:"max_elements"`
}

// Metric aliases the distance metric type so callers configuring an index
// do not need to import the distance package directly.
type Metric = distance.Metric

// DefaultConfig returns the standard parameters: M=16, efConstruction=200,
// efSearch=50, cosine metric, unbounded capacity.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		Metric:         distance.Cosine,
		MaxElements:    0,
	}
}

// withDefaults fills in zero-valued fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.M <= 0 {
		c.M = d.M
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = d.EfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = d.EfSearch
	}
	if c.Metric == "" {
		c.Metric = d.Metric
	}
	if c.MaxElements < 0 {
		c.MaxElements = 0
	}
	return c
}

// Stats counts the operations applied to an index since creation. It is
// carried through snapshots.
type Stats struct {
	Inserts  uint64 `json:"inserts"`
	Updates  uint64 `json:"updates"`
	Deletes  uint64 `json:"deletes"`
	Searches uint64 `json:"searches"`
}
