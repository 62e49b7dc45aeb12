package vectorstore

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/diogenlabs/semvec/pkg/core/hnsw"
	"github.com/diogenlabs/semvec/pkg/embeddings"
	"github.com/diogenlabs/semvec/pkg/metrics"
)

// DocumentSnapshot pairs an ID with its stored document.
type DocumentSnapshot struct {
	ID       string
	Document Document
}

// Snapshot is the complete serializable state of a store. The embedder is
// not part of it; restoring requires supplying one again.
type Snapshot struct {
	Config    Config
	Index     *hnsw.Snapshot
	Documents []DocumentSnapshot
	Stats     Stats
}

// Snapshot exports a deep copy of the store state. The embedding cache is
// advisory and is not included.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Config:    s.cfg,
		Index:     s.index.Snapshot(),
		Documents: make([]DocumentSnapshot, 0, s.docs.Len()),
		Stats:     s.Stats(),
	}
	s.docs.Scan(func(id string, doc Document) bool {
		snap.Documents = append(snap.Documents, DocumentSnapshot{ID: id, Document: doc})
		return true
	})
	return snap
}

// FromSnapshot rebuilds a store around the given embedder. The document
// table and the index must agree on the ID set; a snapshot where they
// diverged is rejected.
func FromSnapshot(embedder embeddings.Embedder, snap *Snapshot) (*Store, error) {
	store, err := New(embedder, snap.Config)
	if err != nil {
		return nil, err
	}
	index, err := hnsw.FromSnapshot(snap.Index)
	if err != nil {
		return nil, err
	}
	store.index = index

	for _, ds := range snap.Documents {
		if !index.Contains(ds.ID) {
			return nil, fmt.Errorf("vectorstore: snapshot document '%s' has no index entry", ds.ID)
		}
		store.docs.Set(ds.ID, ds.Document)
	}
	if index.Len() != store.docs.Len() {
		return nil, fmt.Errorf("vectorstore: snapshot has %d index entries but %d documents", index.Len(), store.docs.Len())
	}

	store.storeCount.Store(snap.Stats.Stores)
	store.deleteCount.Store(snap.Stats.Deletes)
	store.searchCount.Store(snap.Stats.Searches)
	store.cacheHits.Store(snap.Stats.CacheHits)
	store.cacheMisses.Store(snap.Stats.CacheMisses)
	metrics.VectorsStored.WithLabelValues(store.cfg.Name).Set(float64(store.docs.Len()))
	return store, nil
}

// WriteSnapshot serializes the full store state in gob format.
func (s *Store) WriteSnapshot(w io.Writer) error {
	return gob.NewEncoder(w).Encode(s.Snapshot())
}

// ReadSnapshot rebuilds a store from a gob stream written by WriteSnapshot.
func ReadSnapshot(embedder embeddings.Embedder, r io.Reader) (*Store, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("vectorstore: failed to decode snapshot: %w", err)
	}
	return FromSnapshot(embedder, &snap)
}
