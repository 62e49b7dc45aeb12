package vectorstore

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/diogenlabs/semvec/pkg/embeddings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(embeddings.NewLocalEmbedder(64), Config{Name: "test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestStoreAndSearch(t *testing.T) {
	s := newTestStore(t)

	docs := map[string]string{
		"greet":    "Hello world, nice to see you",
		"farewell": "Goodbye world, see you later",
		"lunch":    "The pasta at this restaurant is excellent",
	}
	for id, text := range docs {
		if err := s.Store(id, text, map[string]any{"len": len(text)}); err != nil {
			t.Fatalf("Store(%s): %v", id, err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	results, err := s.Search("Hello world, nice to see you", 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].ID != "greet" {
		t.Errorf("best match = %s, want greet", results[0].ID)
	}
	if results[0].Text != docs["greet"] {
		t.Errorf("text not attached: %q", results[0].Text)
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("exact-text similarity = %f, want ~1.0", results[0].Similarity)
	}
	if results[0].Metadata["len"] != len(docs["greet"]) {
		t.Errorf("metadata not carried: %v", results[0].Metadata)
	}
}

func TestSearchMinScoreAndFilter(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		text := fmt.Sprintf("document number %d about topic %d", i, i%2)
		if err := s.Store(fmt.Sprintf("doc-%d", i), text, map[string]any{"topic": i % 2}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search("document number 4 about topic 0", 10, &SearchOptions{
		Filter: func(id string, doc Document) bool {
			return doc.Metadata["topic"] == 0
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("filtered search returned nothing")
	}
	for _, r := range results {
		if r.Metadata["topic"] != 0 {
			t.Errorf("filter leaked %s", r.ID)
		}
	}

	strict, err := s.Search("document number 4 about topic 0", 10, &SearchOptions{MinScore: 0.999})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range strict {
		if r.Similarity < 0.999 {
			t.Errorf("minScore leaked %s at %f", r.ID, r.Similarity)
		}
	}
}

func TestSearchSimilar(t *testing.T) {
	s := newTestStore(t)

	if err := s.Store("a", "the quick brown fox jumps", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Store("b", "the quick brown fox leaps", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Store("c", "stock markets fell sharply today", nil); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchSimilar("a", 2)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	for _, r := range results {
		if r.ID == "a" {
			t.Fatal("probe id included in its own results")
		}
	}
	if len(results) == 0 || results[0].ID != "b" {
		t.Errorf("nearest neighbor of a = %v, want b first", results)
	}

	if _, err := s.SearchSimilar("missing", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDocument(t *testing.T) {
	s := newTestStore(t)

	if err := s.Store("a", "original text about cats", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Store("a", "replacement text about dogs", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d after update, want 1", s.Len())
	}
	doc, ok := s.Get("a")
	if !ok || doc.Text != "replacement text about dogs" {
		t.Fatalf("document not updated: %+v", doc)
	}

	results, err := s.Search("replacement text about dogs", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("index not updated with new vector: %f", results[0].Similarity)
	}
}

func TestDeleteKeepsTableAndIndexAligned(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		if err := s.Store(fmt.Sprintf("doc-%d", i), fmt.Sprintf("content %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Delete("doc-2") {
		t.Fatal("Delete(doc-2) = false")
	}
	if s.Delete("doc-2") {
		t.Fatal("second Delete(doc-2) = true")
	}
	if s.Has("doc-2") {
		t.Fatal("Has(doc-2) after delete")
	}
	if s.Index().Contains("doc-2") {
		t.Fatal("index still contains deleted id")
	}
	if s.Len() != 4 || s.Index().Len() != 4 {
		t.Fatalf("table/index diverged: %d vs %d", s.Len(), s.Index().Len())
	}
}

func TestIDsSorted(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"zebra", "apple", "mango"} {
		if err := s.Store(id, "text for "+id, nil); err != nil {
			t.Fatal(err)
		}
	}
	ids := s.IDs()
	want := []string{"apple", "mango", "zebra"}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}

func TestEmbedCacheCounters(t *testing.T) {
	s := newTestStore(t)

	if err := s.Store("a", "repeated text", nil); err != nil {
		t.Fatal(err)
	}
	// The same text goes through the cache on search.
	if _, err := s.Search("repeated text", 1, nil); err != nil {
		t.Fatal(err)
	}
	stats := s.Stats()
	if stats.CacheHits == 0 {
		t.Errorf("expected at least one cache hit, stats: %+v", stats)
	}
	if stats.Stores != 1 || stats.Searches != 1 {
		t.Errorf("operation counters wrong: %+v", stats)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(string) ([]float32, error) {
	return nil, errors.New("backend unavailable")
}
func (failingEmbedder) Dimension() int { return 0 }

func TestEmbedderFailureLeavesStoreUntouched(t *testing.T) {
	s, err := New(failingEmbedder{}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Store("a", "text", nil); err == nil {
		t.Fatal("expected embedder error")
	}
	if s.Len() != 0 || s.Index().Len() != 0 {
		t.Fatal("failed store mutated state")
	}
	if _, err := s.Search("text", 1, nil); err == nil {
		t.Fatal("expected embedder error on search")
	}
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	embedder := embeddings.NewLocalEmbedder(64)
	s, err := New(embedder, Config{Name: "snap"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("snapshot document %d", i)
		if err := s.Store(fmt.Sprintf("doc-%d", i), text, map[string]any{"i": i}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := s.WriteSnapshot(&buf); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	restored, err := ReadSnapshot(embedder, &buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	if restored.Len() != s.Len() {
		t.Fatalf("restored Len = %d, want %d", restored.Len(), s.Len())
	}
	doc, ok := restored.Get("doc-7")
	if !ok || doc.Text != "snapshot document 7" {
		t.Fatalf("document lost: %+v", doc)
	}

	orig, err := s.Search("snapshot document 3", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Search("snapshot document 3", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(orig) != len(got) {
		t.Fatalf("result counts diverged: %d vs %d", len(orig), len(got))
	}
	for i := range orig {
		if orig[i].ID != got[i].ID {
			t.Errorf("rank %d: %s vs %s", i, orig[i].ID, got[i].ID)
		}
	}
}
