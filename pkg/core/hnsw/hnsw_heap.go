// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// This file defines the min-heap and max-heap used during graph traversal,
// built on Go's standard container/heap package and specialized for search
// candidates.
package hnsw

import "container/heap"

// candidate pairs an internal node ID with its distance from the query.
// Equidistant candidates keep heap insertion order; the structure is
// approximate by design, so no further tie-break is applied.
type candidate struct {
	id   uint32
	dist float64
}

// minHeap is a min-heap of candidates ordered by distance. The nearest
// candidate is always at the top. It holds the frontier of nodes still to
// be explored, so the search always expands the most promising one next.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Push adds an element to the heap. Use the package-level helpers instead of
// calling this directly.
func (h *minHeap) Push(x any) { *h = append(*h, x.(candidate)) }

// Pop removes and returns the last element; container/heap arranges for it
// to be the nearest candidate.
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap is a max-heap of candidates ordered by distance. The farthest
// candidate is always at the top, making it cheap to evict the worst of the
// current best set when a closer neighbor is found.
type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Push adds an element to the heap. Use the package-level helpers instead of
// calling this directly.
func (h *maxHeap) Push(x any) { *h = append(*h, x.(candidate)) }

// Pop removes and returns the last element; container/heap arranges for it
// to be the farthest candidate.
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *minHeap) push(c candidate) { heap.Push(h, c) }
func (h *minHeap) pop() candidate   { return heap.Pop(h).(candidate) }
func (h *maxHeap) push(c candidate) { heap.Push(h, c) }
func (h *maxHeap) pop() candidate   { return heap.Pop(h).(candidate) }

// peek returns the farthest candidate without removing it.
// Callers must check Len first.
func (h maxHeap) peek() candidate { return h[0] }
