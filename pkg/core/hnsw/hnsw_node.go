// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// This file defines the Node struct, the fundamental building block of the
// graph. Each node carries a vector, an open metadata bag, and its neighbor
// lists across the layers it participates in.
package hnsw

// Node is a single entry in the HNSW graph.
type Node struct {
	// ID is the user-facing, external identifier for the vector.
	ID string
	// InternalID is a compact identifier used for graph traversal.
	InternalID uint32
	// Vector is the stored embedding. Its length must match the index
	// dimension established by the first insert.
	Vector []float32
	// Level is the highest layer this node participates in.
	Level int
	// Metadata is an open, caller-defined bag of serializable values.
	Metadata map[string]any
	// Connections holds the neighbor lists, one per layer from 0 to Level.
	// Neighbor IDs are internal IDs and every edge is bidirectional.
	Connections [][]uint32
}

// removeConnection drops the given neighbor from the node's list at the
// given level. Returns true if the neighbor was present.
func (n *Node) removeConnection(level int, neighbor uint32) bool {
	if level >= len(n.Connections) {
		return false
	}
	conns := n.Connections[level]
	for i, id := range conns {
		if id == neighbor {
			n.Connections[level] = append(conns[:i], conns[i+1:]...)
			return true
		}
	}
	return false
}

// hasConnection reports whether the node already links to the given neighbor
// at the given level.
func (n *Node) hasConnection(level int, neighbor uint32) bool {
	if level >= len(n.Connections) {
		return false
	}
	for _, id := range n.Connections[level] {
		if id == neighbor {
			return true
		}
	}
	return false
}
