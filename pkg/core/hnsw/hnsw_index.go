// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// This file contains the core Index struct and its methods for building,
// searching, and maintaining the multi-layer proximity graph. The index maps
// external string IDs to nodes carrying a vector and an open metadata bag,
// supports cosine, Euclidean, and negative-dot-product metrics, and enforces
// a fixed vector dimension established by the first insert.
package hnsw

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diogenlabs/semvec/pkg/core/distance"
	"github.com/diogenlabs/semvec/pkg/phi"
)

// Index is the hierarchical graph structure. A single mutex guards all
// mutations: insert-time pruning can rewire other nodes' adjacency lists.
type Index struct {
	mu  sync.RWMutex
	cfg Config

	// dims is fixed by the first insert and enforced thereafter. It is
	// retained even if the index is emptied again.
	dims int

	// entrypointID names a live node at maxLevel. It is meaningless while
	// maxLevel is -1 (empty index).
	entrypointID uint32
	maxLevel     int

	// nodes is indexed by internal ID. Deleted slots are nil and internal
	// IDs are never reused.
	nodes              []*Node
	externalToInternal map[string]uint32
	nodeCounter        uint32

	distFunc distance.Func
	rng      *rand.Rand

	stats       Stats
	searchCount atomic.Uint64

	visitedPool sync.Pool
}

// Result is a single search hit, nearest first.
type Result struct {
	ID string
	// Similarity is 1 - distance. For cosine this is the true cosine
	// similarity; the other metrics inherit the convention.
	Similarity float64
	Metadata   map[string]any
}

// SearchOptions tunes a single Search call. The zero value means no
// similarity floor, no metadata filter, and the index's default efSearch.
type SearchOptions struct {
	// MinScore, when non-zero, drops results whose similarity is below it.
	MinScore float64
	// Filter accepts or rejects a hit based on its metadata. Supplying a
	// filter widens the underlying graph search fivefold to compensate
	// for rejected candidates.
	Filter func(metadata map[string]any) bool
	// Ef overrides the index's efSearch for this call when positive.
	Ef int
}

// New creates an empty index with the given configuration. Zero-valued
// config fields fall back to DefaultConfig.
func New(cfg Config) (*Index, error) {
	cfg = cfg.withDefaults()
	fn, err := distance.GetFunc(cfg.Metric)
	if err != nil {
		return nil, err
	}
	h := &Index{
		cfg:                cfg,
		maxLevel:           -1,
		nodes:              make([]*Node, 0, 1024),
		externalToInternal: make(map[string]uint32),
		distFunc:           fn,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	h.visitedPool = sync.Pool{
		New: func() any { return newBitSet(256) },
	}
	return h, nil
}

// Config returns the index configuration.
func (h *Index) Config() Config {
	return h.cfg
}

// Len returns the number of live entries.
func (h *Index) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.externalToInternal)
}

// Dimensions returns the vector dimension established by the first insert,
// or 0 if nothing has been inserted yet.
func (h *Index) Dimensions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dims
}

// Stats returns the operation counters.
func (h *Index) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.stats
	s.Searches = h.searchCount.Load()
	return s
}

// Contains reports whether the given ID is present.
func (h *Index) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.externalToInternal[id]
	return ok
}

// Get returns the stored vector and metadata for an ID.
func (h *Index) Get(id string) ([]float32, map[string]any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	internalID, ok := h.externalToInternal[id]
	if !ok {
		return nil, nil, false
	}
	node := h.nodes[internalID]
	return node.Vector, node.Metadata, true
}

// IDs returns the external IDs of all live entries in unspecified order.
func (h *Index) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.externalToInternal))
	for id := range h.externalToInternal {
		ids = append(ids, id)
	}
	return ids
}

// Insert adds a vector with the given external ID, or updates it in place
// if the ID already exists.
//
// An update replaces the vector and metadata but does not rewire the node's
// graph position; a node whose vector changes dramatically may sit in a
// stale neighborhood. Callers needing relocation semantics should delete
// and re-insert.
//
// Returns ErrDimensionMismatch if the vector's length differs from the
// established dimension, and ErrCapacityExceeded when inserting a new ID
// into a full index. A rejected insert leaves the index untouched.
func (h *Index) Insert(id string, vector []float32, metadata map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if h.dims > 0 && len(vector) != h.dims {
		return fmt.Errorf("%w: index dimension is %d, got %d", ErrDimensionMismatch, h.dims, len(vector))
	}

	// In-place update: vector and metadata replaced, graph untouched.
	if internalID, exists := h.externalToInternal[id]; exists {
		node := h.nodes[internalID]
		node.Vector = vector
		node.Metadata = metadata
		h.stats.Updates++
		return nil
	}

	if h.cfg.MaxElements > 0 && len(h.externalToInternal) >= h.cfg.MaxElements {
		return fmt.Errorf("%w: max elements is %d", ErrCapacityExceeded, h.cfg.MaxElements)
	}

	if h.dims == 0 {
		h.dims = len(vector)
	}

	internalID := h.nodeCounter
	h.nodeCounter++
	level := h.randomLevel()

	node := &Node{
		ID:          id,
		InternalID:  internalID,
		Vector:      vector,
		Level:       level,
		Metadata:    metadata,
		Connections: make([][]uint32, level+1),
	}
	h.growNodes(internalID)
	h.nodes[internalID] = node
	h.externalToInternal[id] = internalID
	h.stats.Inserts++

	// First live node: it becomes the entry point at its own level.
	if h.maxLevel < 0 {
		h.entrypointID = internalID
		h.maxLevel = level
		return nil
	}

	// Coarse descent through the layers above the new node's level,
	// taking the single nearest candidate as the next anchor.
	ep := h.entrypointID
	for l := h.maxLevel; l > level; l-- {
		nearest, err := h.searchLayer(vector, ep, 1, l, 1)
		if err != nil {
			return err
		}
		if len(nearest) > 0 {
			ep = nearest[0].id
		}
	}

	// Link the new node layer by layer from its level down to 0.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates, err := h.searchLayer(vector, ep, h.cfg.EfConstruction, l, h.cfg.EfConstruction)
		if err != nil {
			return err
		}
		neighbors := candidates
		if len(neighbors) > h.cfg.M {
			neighbors = neighbors[:h.cfg.M]
		}
		for _, nb := range neighbors {
			nbNode := h.nodes[nb.id]
			if nbNode == nil || l >= len(nbNode.Connections) {
				continue
			}
			if node.hasConnection(l, nb.id) {
				continue
			}
			node.Connections[l] = append(node.Connections[l], nb.id)
			if !nbNode.hasConnection(l, internalID) {
				nbNode.Connections[l] = append(nbNode.Connections[l], internalID)
			}
			if len(nbNode.Connections[l]) > h.cfg.M {
				h.pruneNeighbors(nbNode, l)
			}
		}
		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entrypointID = internalID
	}
	return nil
}

// Search returns up to k entries nearest to the query, best first. An empty
// index yields an empty result; a k larger than the index size returns
// everything available, never an error.
func (h *Index) Search(query []float32, k int, opts *SearchOptions) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.searchCount.Add(1)

	if k <= 0 || h.maxLevel < 0 {
		return []Result{}, nil
	}
	if len(query) != h.dims {
		return nil, fmt.Errorf("%w: index dimension is %d, got query of %d", ErrDimensionMismatch, h.dims, len(query))
	}

	ep := h.entrypointID
	for l := h.maxLevel; l > 0; l-- {
		nearest, err := h.searchLayer(query, ep, 1, l, 1)
		if err != nil {
			return nil, err
		}
		if len(nearest) > 0 {
			ep = nearest[0].id
		}
	}

	ef := h.cfg.EfSearch
	if opts != nil && opts.Ef > 0 {
		ef = opts.Ef
	}
	width := ef
	if width < k {
		width = k
	}
	if opts != nil && opts.Filter != nil {
		width *= 5
	}

	candidates, err := h.searchLayer(query, ep, width, 0, width)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, k)
	for _, c := range candidates {
		sim := distance.Similarity(c.dist)
		if opts != nil && opts.MinScore != 0 && sim < opts.MinScore {
			// Candidates arrive nearest first; everything after this
			// is below the floor too.
			break
		}
		node := h.nodes[c.id]
		if opts != nil && opts.Filter != nil && !opts.Filter(node.Metadata) {
			continue
		}
		results = append(results, Result{ID: node.ID, Similarity: sim, Metadata: node.Metadata})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes an entry and every edge pointing at it. Returns false if
// the ID is absent. If the removed node was the entry point, the entry
// point is recomputed as the remaining node with the highest level.
func (h *Index) Delete(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	internalID, ok := h.externalToInternal[id]
	if !ok {
		return false
	}
	node := h.nodes[internalID]

	// Edges are bidirectional, so the node's own adjacency lists name
	// every node that links back to it.
	for l, conns := range node.Connections {
		for _, nbID := range conns {
			if nb := h.nodes[nbID]; nb != nil {
				nb.removeConnection(l, internalID)
			}
		}
	}

	h.nodes[internalID] = nil
	delete(h.externalToInternal, id)
	h.stats.Deletes++

	if internalID == h.entrypointID {
		bestLevel := -1
		var bestID uint32
		for _, n := range h.nodes {
			if n != nil && n.Level > bestLevel {
				bestLevel = n.Level
				bestID = n.InternalID
			}
		}
		h.maxLevel = bestLevel
		h.entrypointID = bestID
	}
	return true
}

// searchLayer performs the bounded greedy search on a single layer,
// returning up to k candidates sorted nearest first. Callers must hold at
// least a read lock.
func (h *Index) searchLayer(query []float32, entryID uint32, k, level, ef int) ([]candidate, error) {
	if ef < k {
		ef = k
	}

	visited := h.visitedPool.Get().(*bitSet)
	defer func() {
		visited.reset()
		h.visitedPool.Put(visited)
	}()
	visited.grow(h.nodeCounter)

	entry := h.nodes[entryID]
	if entry == nil {
		return nil, fmt.Errorf("hnsw: entry point %d not found", entryID)
	}
	dist, err := h.distFunc(query, entry.Vector)
	if err != nil {
		return nil, err
	}

	frontier := make(minHeap, 0, ef)
	results := make(maxHeap, 0, ef+1)
	start := candidate{id: entryID, dist: dist}
	frontier.push(start)
	results.push(start)
	visited.add(entryID)

	for frontier.Len() > 0 {
		current := frontier.pop()

		// Lower bound: if the best unexplored candidate is farther than
		// the worst kept result, no path can improve the result set.
		if results.Len() >= ef && current.dist > results.peek().dist {
			break
		}

		node := h.nodes[current.id]
		if node == nil || level >= len(node.Connections) {
			continue
		}
		for _, nbID := range node.Connections[level] {
			if visited.has(nbID) {
				continue
			}
			visited.add(nbID)
			nb := h.nodes[nbID]
			if nb == nil {
				continue
			}
			d, err := h.distFunc(query, nb.Vector)
			if err != nil {
				return nil, err
			}
			if results.Len() < ef || d < results.peek().dist {
				c := candidate{id: nbID, dist: d}
				frontier.push(c)
				results.push(c)
				if results.Len() > ef {
					results.pop()
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = results.pop()
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// pruneNeighbors trims a node's adjacency list at the given level back down
// to the M nearest neighbors, removing the reverse edge of every dropped
// link so the graph stays bidirectional.
func (h *Index) pruneNeighbors(node *Node, level int) {
	conns := node.Connections[level]
	if len(conns) <= h.cfg.M {
		return
	}

	scored := make([]candidate, 0, len(conns))
	for _, nbID := range conns {
		nb := h.nodes[nbID]
		if nb == nil {
			continue
		}
		d, err := h.distFunc(node.Vector, nb.Vector)
		if err != nil {
			continue
		}
		scored = append(scored, candidate{id: nbID, dist: d})
	}
	// Stable sort keeps insertion order among equidistant neighbors.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].dist < scored[j].dist
	})

	kept := make([]uint32, 0, h.cfg.M)
	for i, c := range scored {
		if i < h.cfg.M {
			kept = append(kept, c.id)
			continue
		}
		if nb := h.nodes[c.id]; nb != nil {
			nb.removeConnection(level, node.InternalID)
		}
	}
	node.Connections[level] = kept
}

// randomLevel draws a level by flipping a biased coin with retention
// probability 1/φ per layer, capped at LevelCap. The resulting geometric
// distribution, not the RNG itself, is the contract.
func (h *Index) randomLevel() int {
	level := 0
	for h.rng.Float64() < phi.Inv && level < LevelCap {
		level++
	}
	return level
}

// growNodes ensures the nodes slice covers the given internal ID. Must be
// called under the write lock.
func (h *Index) growNodes(id uint32) {
	if uint32(len(h.nodes)) > id {
		return
	}
	newCap := uint32(cap(h.nodes))
	if newCap == 0 {
		newCap = 1024
	}
	for newCap <= id {
		newCap *= 2
	}
	if newCap > uint32(cap(h.nodes)) {
		grown := make([]*Node, len(h.nodes), newCap)
		copy(grown, h.nodes)
		h.nodes = grown
	}
	h.nodes = h.nodes[:id+1]
}
