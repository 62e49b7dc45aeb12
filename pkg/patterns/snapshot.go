package patterns

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"

	"github.com/diogenlabs/semvec/pkg/embeddings"
	"github.com/diogenlabs/semvec/pkg/metrics"
	"github.com/diogenlabs/semvec/pkg/vectorstore"
)

// Snapshot is the serializable state of a matcher, including the backing
// vector store.
type Snapshot struct {
	Config   Config
	Patterns []Pattern
	Stats    Stats
	Store    *vectorstore.Snapshot
}

// Snapshot captures the matcher and its store. Cached clusters are not
// carried; a restored matcher recomputes them on demand.
func (m *Matcher) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ps := make([]Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		ps = append(ps, *p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })

	return &Snapshot{
		Config:   m.cfg,
		Patterns: ps,
		Stats:    m.stats,
		Store:    m.store.Snapshot(),
	}
}

// FromSnapshot rebuilds a matcher. Every pattern must have its mirror
// document in the store snapshot; extra documents are tolerated.
func FromSnapshot(embedder embeddings.Embedder, snap *Snapshot) (*Matcher, error) {
	if snap == nil {
		return nil, fmt.Errorf("patterns: nil snapshot")
	}
	store, err := vectorstore.FromSnapshot(embedder, snap.Store)
	if err != nil {
		return nil, fmt.Errorf("patterns: restore store: %w", err)
	}

	m := &Matcher{
		cfg:      snap.Config.withDefaults(),
		store:    store,
		patterns: make(map[string]*Pattern, len(snap.Patterns)),
		stats:    snap.Stats,
	}
	for i := range snap.Patterns {
		p := snap.Patterns[i]
		if p.ID == "" {
			return nil, fmt.Errorf("patterns: snapshot pattern %d has empty id", i)
		}
		if _, dup := m.patterns[p.ID]; dup {
			return nil, fmt.Errorf("patterns: duplicate pattern id %q in snapshot", p.ID)
		}
		if !store.Has(p.ID) {
			return nil, fmt.Errorf("patterns: pattern %q has no store document", p.ID)
		}
		m.patterns[p.ID] = &p
	}
	metrics.PatternsTracked.WithLabelValues(m.cfg.Name).Set(float64(len(m.patterns)))
	return m, nil
}

// WriteSnapshot encodes the matcher state to w as a gob stream.
func (m *Matcher) WriteSnapshot(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m.Snapshot()); err != nil {
		return fmt.Errorf("patterns: encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a gob stream written by WriteSnapshot and rebuilds
// the matcher around the given embedder.
func ReadSnapshot(embedder embeddings.Embedder, r io.Reader) (*Matcher, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("patterns: decode snapshot: %w", err)
	}
	return FromSnapshot(embedder, &snap)
}
