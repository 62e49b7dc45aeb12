// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// This file implements full-state snapshotting. A snapshot carries the
// configuration, the established dimension, the entry point, and every node
// with its vector, metadata, and per-level neighbor lists; restoring one
// must reproduce identical search results.
package hnsw

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/diogenlabs/semvec/pkg/core/distance"
	"github.com/x448/float16"
)

func init() {
	// Metadata bags are open maps; register the composite value types a
	// caller may reasonably put in one so gob can round-trip them.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// NodeSnapshot is the serializable form of a single node.
type NodeSnapshot struct {
	ID         string
	InternalID uint32
	Level      int
	Metadata   map[string]any
	// Neighbors holds the per-level adjacency lists as internal IDs.
	Neighbors [][]uint32

	// Exactly one of Vector and VectorF16 is populated, depending on the
	// snapshot's Compact flag.
	Vector    []float32
	VectorF16 []uint16
}

// Snapshot is the complete serializable state of an index.
type Snapshot struct {
	Config      Config
	Dimensions  int
	EntryPoint  uint32
	MaxLevel    int
	NodeCounter uint32
	// Compact marks vectors stored in half precision. Compact snapshots
	// halve the vector payload but do not round-trip bit-exactly.
	Compact bool
	Nodes   []NodeSnapshot
	Stats   Stats
}

// Snapshot exports a deep copy of the index state.
func (h *Index) Snapshot() *Snapshot {
	return h.snapshot(false)
}

// CompactSnapshot exports the index state with vectors encoded in half
// precision (float16). Restoring one reproduces the graph structure exactly
// but vectors only to half-float tolerance.
func (h *Index) CompactSnapshot() *Snapshot {
	return h.snapshot(true)
}

func (h *Index) snapshot(compact bool) *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := &Snapshot{
		Config:      h.cfg,
		Dimensions:  h.dims,
		EntryPoint:  h.entrypointID,
		MaxLevel:    h.maxLevel,
		NodeCounter: h.nodeCounter,
		Compact:     compact,
		Nodes:       make([]NodeSnapshot, 0, len(h.externalToInternal)),
		Stats:       h.stats,
	}
	snap.Stats.Searches = h.searchCount.Load()

	for _, node := range h.nodes {
		if node == nil {
			continue
		}
		ns := NodeSnapshot{
			ID:         node.ID,
			InternalID: node.InternalID,
			Level:      node.Level,
			Metadata:   copyMetadata(node.Metadata),
			Neighbors:  make([][]uint32, len(node.Connections)),
		}
		for l, conns := range node.Connections {
			ns.Neighbors[l] = append([]uint32(nil), conns...)
		}
		if compact {
			ns.VectorF16 = make([]uint16, len(node.Vector))
			for i, v := range node.Vector {
				ns.VectorF16[i] = float16.Fromfloat32(v).Bits()
			}
		} else {
			ns.Vector = append([]float32(nil), node.Vector...)
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	return snap
}

// FromSnapshot rebuilds an index from a snapshot.
func FromSnapshot(snap *Snapshot) (*Index, error) {
	cfg := snap.Config.withDefaults()
	fn, err := distance.GetFunc(cfg.Metric)
	if err != nil {
		return nil, err
	}

	h := &Index{
		cfg:                cfg,
		dims:               snap.Dimensions,
		entrypointID:       snap.EntryPoint,
		maxLevel:           snap.MaxLevel,
		nodes:              make([]*Node, snap.NodeCounter),
		externalToInternal: make(map[string]uint32, len(snap.Nodes)),
		nodeCounter:        snap.NodeCounter,
		distFunc:           fn,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:              snap.Stats,
	}
	h.searchCount.Store(snap.Stats.Searches)
	h.visitedPool = sync.Pool{
		New: func() any { return newBitSet(256) },
	}

	for _, ns := range snap.Nodes {
		if ns.ID == "" {
			return nil, fmt.Errorf("hnsw: snapshot node %d has an empty ID", ns.InternalID)
		}
		if ns.InternalID >= snap.NodeCounter {
			return nil, fmt.Errorf("hnsw: snapshot node ID %d exceeds recorded counter %d", ns.InternalID, snap.NodeCounter)
		}
		node := &Node{
			ID:          ns.ID,
			InternalID:  ns.InternalID,
			Level:       ns.Level,
			Metadata:    ns.Metadata,
			Connections: ns.Neighbors,
		}
		if snap.Compact {
			node.Vector = make([]float32, len(ns.VectorF16))
			for i, bits := range ns.VectorF16 {
				node.Vector[i] = float16.Frombits(bits).Float32()
			}
		} else {
			node.Vector = ns.Vector
		}
		if existing, dup := h.externalToInternal[ns.ID]; dup {
			return nil, fmt.Errorf("hnsw: snapshot ID '%s' appears at both %d and %d", ns.ID, existing, ns.InternalID)
		}
		h.nodes[ns.InternalID] = node
		h.externalToInternal[ns.ID] = ns.InternalID
	}
	return h, nil
}

// WriteSnapshot serializes the full index state in gob format.
func (h *Index) WriteSnapshot(w io.Writer) error {
	return gob.NewEncoder(w).Encode(h.Snapshot())
}

// ReadSnapshot rebuilds an index from a gob stream written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Index, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("hnsw: failed to decode snapshot: %w", err)
	}
	return FromSnapshot(&snap)
}

func copyMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
