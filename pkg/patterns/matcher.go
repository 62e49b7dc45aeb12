package patterns

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogenlabs/semvec/pkg/metrics"
	"github.com/diogenlabs/semvec/pkg/phi"
	"github.com/diogenlabs/semvec/pkg/vectorstore"
)

// ErrNotFound is returned by operations that require an existing pattern.
var ErrNotFound = errors.New("patterns: pattern not found")

// Matcher tracks semantic patterns in a vector store it exclusively owns.
//
// Multiple independent matchers are safely co-resident; construct them
// explicitly and pass them where needed instead of sharing hidden state.
type Matcher struct {
	mu    sync.RWMutex
	cfg   Config
	store *vectorstore.Store

	patterns map[string]*Pattern

	// clusters caches the last clustering until a pattern add/remove
	// marks it dirty.
	clusters    []Cluster
	clusterOpts ClusterOptions
	clustersOK  bool
	generation  uint64
	stats       Stats
}

// NewMatcher creates a matcher around the given store. The matcher writes
// its mirror documents there; documents stored by other callers are ignored
// by pattern lookups but still occupy index capacity.
func NewMatcher(store *vectorstore.Store, cfg Config) (*Matcher, error) {
	if store == nil {
		return nil, errors.New("patterns: store is required")
	}
	return &Matcher{
		cfg:      cfg.withDefaults(),
		store:    store,
		patterns: make(map[string]*Pattern),
	}, nil
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Store exposes the underlying vector store for read-side composition.
func (m *Matcher) Store() *vectorstore.Store {
	return m.store
}

// AddPattern records a pattern. An empty id draws a fresh UUID. Re-adding
// an existing id reinforces it instead: the occurrence count increments and
// confidence moves a φ⁻³ step toward its 1/φ cap.
//
// The description is mirrored into the vector store; a failure there (for
// example an embedder outage) leaves the matcher untouched.
func (m *Matcher) AddPattern(id, description string, extra map[string]any) (Pattern, error) {
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.patterns[id]; ok {
		reinforced := *existing
		reinforced.Metadata.Occurrences++
		reinforced.Metadata.Confidence += (phi.MaxConfidence - reinforced.Metadata.Confidence) * phi.Inv3
		if description != "" && description != reinforced.Description {
			reinforced.Description = description
		}
		if err := m.mirror(&reinforced); err != nil {
			return Pattern{}, err
		}
		*existing = reinforced
		m.stats.Reinforcements++
		m.markDirty()
		return reinforced, nil
	}

	p := &Pattern{
		ID:          id,
		Description: description,
		Metadata: PatternMetadata{
			CreatedAt:   time.Now(),
			Occurrences: 1,
			Confidence:  m.cfg.InitialConfidence,
			Extra:       extra,
		},
	}
	if err := m.mirror(p); err != nil {
		return Pattern{}, err
	}
	m.patterns[id] = p
	m.stats.PatternsAdded++
	m.markDirty()
	metrics.PatternsTracked.WithLabelValues(m.cfg.Name).Set(float64(len(m.patterns)))
	return *p, nil
}

// RemovePattern deletes a pattern from the matcher and the store together.
// Returns false if the id is unknown.
func (m *Matcher) RemovePattern(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patterns[id]; !ok {
		return false
	}
	delete(m.patterns, id)
	m.store.Delete(id)
	m.stats.PatternsRemoved++
	m.markDirty()
	metrics.PatternsTracked.WithLabelValues(m.cfg.Name).Set(float64(len(m.patterns)))
	return true
}

// GetPattern returns a tracked pattern by id.
func (m *Matcher) GetPattern(id string) (Pattern, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patterns[id]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// Patterns returns a copy of all tracked patterns in unspecified order.
func (m *Matcher) Patterns() []Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, *p)
	}
	return out
}

// Len returns the number of tracked patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// Stats returns the operation counters.
func (m *Matcher) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// FindOptions tunes a FindSimilar call.
type FindOptions struct {
	// MinScore overrides the matcher's MatchThreshold when non-zero.
	MinScore float64
}

// FindSimilar returns up to k patterns similar to the query, best first,
// floored at the matcher's MatchThreshold unless overridden.
func (m *Matcher) FindSimilar(query string, k int, opts *FindOptions) ([]Match, error) {
	floor := m.cfg.MatchThreshold
	if opts != nil && opts.MinScore != 0 {
		floor = opts.MinScore
	}

	hits, err := m.store.Search(query, k, &vectorstore.SearchOptions{MinScore: floor})
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		p, ok := m.patterns[hit.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Pattern: *p, Score: hit.Similarity})
	}
	return matches, nil
}

// MatchExisting returns the single best pattern at or above the threshold,
// or nil when nothing qualifies. A non-positive threshold falls back to the
// matcher's ClusterThreshold. This is the dedup check: "have we already
// recorded this?"
func (m *Matcher) MatchExisting(description string, threshold float64) (*Match, error) {
	if threshold <= 0 {
		threshold = m.cfg.ClusterThreshold
	}
	matches, err := m.FindSimilar(description, 1, &FindOptions{MinScore: threshold})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// RecommendPatterns returns up to k patterns similar to the context,
// re-ranked by score × confidence: a highly confident but moderately
// similar pattern can outrank a nominally closer, low-confidence one.
func (m *Matcher) RecommendPatterns(context string, k int) ([]Match, error) {
	matches, err := m.FindSimilar(context, k, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score*matches[i].Pattern.Metadata.Confidence >
			matches[j].Score*matches[j].Pattern.Metadata.Confidence
	})
	return matches, nil
}

// SimilarToPattern returns up to k patterns similar to an already-tracked
// one, excluding the pattern itself. Returns ErrNotFound for an unknown id.
func (m *Matcher) SimilarToPattern(id string, k int) ([]Match, error) {
	m.mu.RLock()
	p, ok := m.patterns[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	matches, err := m.FindSimilar(p.Description, k+1, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, k)
	for _, match := range matches {
		if match.Pattern.ID == id {
			continue
		}
		out = append(out, match)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// mirror upserts the pattern's description and bookkeeping into the store.
// Callers must hold the write lock.
func (m *Matcher) mirror(p *Pattern) error {
	return m.store.Store(p.ID, p.Description, map[string]any{
		"pattern_id":  p.ID,
		"occurrences": p.Metadata.Occurrences,
		"confidence":  p.Metadata.Confidence,
	})
}

// markDirty invalidates the cached clustering. Callers must hold the write
// lock.
func (m *Matcher) markDirty() {
	m.clustersOK = false
	m.clusters = nil
	m.generation++
}
