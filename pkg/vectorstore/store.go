// Package vectorstore provides a text-level semantic store on top of the
// HNSW index. It composes a pluggable embedder, an embedding cache, and a
// document table kept strictly one-to-one with the index: a document ID
// exists in the table if and only if the same ID exists in the index.
package vectorstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"

	"github.com/diogenlabs/semvec/pkg/core/hnsw"
	"github.com/diogenlabs/semvec/pkg/embeddings"
	"github.com/diogenlabs/semvec/pkg/metrics"
)

// DefaultCacheSize bounds the embedding cache when the config leaves it
// unset.
const DefaultCacheSize = 1000

// ErrNotFound is returned by operations that require an existing ID.
var ErrNotFound = errors.New("vectorstore: id not found")

// Config holds the store parameters.
type Config struct {
	// Name labels this store instance in metrics. Defaults to "default".
	Name string `json:"name" yaml:"name"`
	// CacheSize bounds the embedding cache.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
	// Index configures the underlying HNSW index.
	Index hnsw.Config `json:"index" yaml:"index"`
}

// DefaultConfig returns the standard store parameters.
func DefaultConfig() Config {
	return Config{
		Name:      "default",
		CacheSize: DefaultCacheSize,
		Index:     hnsw.DefaultConfig(),
	}
}

// Document is the stored text and its caller-defined metadata.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is a single text-search hit, best first.
type SearchResult struct {
	ID         string
	Text       string
	Similarity float64
	Metadata   map[string]any
}

// SearchOptions tunes a single Search call.
type SearchOptions struct {
	// MinScore, when non-zero, drops results below the given similarity.
	MinScore float64
	// Filter accepts or rejects a hit by ID and document.
	Filter func(id string, doc Document) bool
}

// Stats counts store operations and cache effectiveness.
type Stats struct {
	Stores      uint64 `json:"stores"`
	Deletes     uint64 `json:"deletes"`
	Searches    uint64 `json:"searches"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
}

// Store is a text-level semantic vector store.
//
// A Store exclusively owns its index, cache, and document table. Multiple
// independent instances are safely co-resident; nothing is shared through
// package state.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	embedder embeddings.Embedder
	index    *hnsw.Index
	docs     btree.Map[string, Document]
	cache    *embedCache
	log      *slog.Logger

	// Operation counters. Kept atomic so read-path operations do not
	// need the write lock.
	storeCount  atomic.Uint64
	deleteCount atomic.Uint64
	searchCount atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
}

// New creates a store around the given embedder.
func New(embedder embeddings.Embedder, cfg Config) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("vectorstore: embedder is required")
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	index, err := hnsw.New(cfg.Index)
	if err != nil {
		return nil, err
	}
	cache, err := newEmbedCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		cache:    cache,
		log:      slog.Default().With("store", cfg.Name),
	}, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Index exposes the underlying HNSW index for read-side composition
// (snapshotting, diagnostics). Mutate it only through the store.
func (s *Store) Index() *hnsw.Index {
	return s.index
}

// Store embeds the text and upserts it under the given ID, keeping the
// document table and the index in lockstep. The index metadata is tagged
// with the original text and a stored timestamp on top of the caller's
// metadata bag.
//
// Embedding failures propagate unmodified and leave the store untouched.
func (s *Store) Store(id, text string, metadata map[string]any) error {
	vector, err := s.embed(text)
	if err != nil {
		return err
	}

	indexMeta := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		indexMeta[k] = v
	}
	indexMeta["text"] = text
	indexMeta["stored_at"] = time.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Insert(id, vector, indexMeta); err != nil {
		return err
	}
	s.docs.Set(id, Document{Text: text, Metadata: metadata})
	s.storeCount.Add(1)
	metrics.VectorsStored.WithLabelValues(s.cfg.Name).Set(float64(s.docs.Len()))
	return nil
}

// Search embeds the query text and returns up to k documents, best first.
func (s *Store) Search(queryText string, k int, opts *SearchOptions) ([]SearchResult, error) {
	started := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(s.cfg.Name).Observe(time.Since(started).Seconds())
	}()
	metrics.SearchesTotal.WithLabelValues(s.cfg.Name).Inc()
	s.searchCount.Add(1)

	if k <= 0 {
		return []SearchResult{}, nil
	}

	vector, err := s.embed(queryText)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index.Len() == 0 {
		return []SearchResult{}, nil
	}

	// Over-fetch so that post-filtering still has enough candidates.
	hits, err := s.index.Search(vector, 2*k, nil)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, k)
	for _, hit := range hits {
		doc, ok := s.docs.Get(hit.ID)
		if !ok {
			// An index entry with no document row means the two halves
			// diverged; skip it rather than surface a phantom hit.
			s.log.Warn("index entry has no document row", "id", hit.ID)
			continue
		}
		if opts != nil && opts.MinScore != 0 && hit.Similarity < opts.MinScore {
			continue
		}
		if opts != nil && opts.Filter != nil && !opts.Filter(hit.ID, doc) {
			continue
		}
		results = append(results, SearchResult{
			ID:         hit.ID,
			Text:       doc.Text,
			Similarity: hit.Similarity,
			Metadata:   doc.Metadata,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// SearchSimilar finds up to k documents similar to an already-stored one,
// excluding the document itself. Returns ErrNotFound for an unknown ID.
func (s *Store) SearchSimilar(id string, k int) ([]SearchResult, error) {
	s.mu.RLock()
	doc, ok := s.docs.Get(id)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	hits, err := s.Search(doc.Text, k+1, nil)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, k)
	for _, hit := range hits {
		if hit.ID == id {
			continue
		}
		results = append(results, hit)
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes the document and its index entry together. Returns false
// if the ID is absent.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.index.Delete(id)
	if _, had := s.docs.Delete(id); had {
		removed = true
	}
	if removed {
		s.deleteCount.Add(1)
		metrics.VectorsStored.WithLabelValues(s.cfg.Name).Set(float64(s.docs.Len()))
	}
	return removed
}

// Get returns the stored document for an ID.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Get(id)
}

// Has reports whether the ID is present.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// IDs returns all stored IDs in lexical order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, s.docs.Len())
	s.docs.Scan(func(id string, _ Document) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Len()
}

// Stats returns the operation counters.
func (s *Store) Stats() Stats {
	return Stats{
		Stores:      s.storeCount.Load(),
		Deletes:     s.deleteCount.Load(),
		Searches:    s.searchCount.Load(),
		CacheHits:   s.cacheHits.Load(),
		CacheMisses: s.cacheMisses.Load(),
	}
}

// embed resolves a text to a vector through the cache. The embedder call
// happens outside the store mutex: it is the engine's only suspension
// point, and holding the lock across it would serialize unrelated reads
// behind remote round-trips.
func (s *Store) embed(text string) ([]float32, error) {
	if vec, ok := s.cache.get(text); ok {
		metrics.EmbedCacheHits.WithLabelValues(s.cfg.Name).Inc()
		s.cacheHits.Add(1)
		return vec, nil
	}
	metrics.EmbedCacheMisses.WithLabelValues(s.cfg.Name).Inc()
	s.cacheMisses.Add(1)

	vec, err := s.embedder.Embed(text)
	if err != nil {
		return nil, err
	}
	s.cache.put(text, vec)
	return vec, nil
}
