package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"
	"testing"
)

func populateRandom(t *testing.T, idx *Index, n, dims int, seed int64) [][]float32 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dims)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
		md := map[string]any{"seq": i}
		if err := idx.Insert(fmt.Sprintf("doc-%d", i), v, md); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	return vecs
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	vecs := populateRandom(t, idx, 300, 24, 99)

	var buf bytes.Buffer
	if err := idx.WriteSnapshot(&buf); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	restored, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	if restored.Len() != idx.Len() {
		t.Fatalf("restored Len = %d, want %d", restored.Len(), idx.Len())
	}
	if restored.Dimensions() != idx.Dimensions() {
		t.Fatalf("restored Dimensions = %d, want %d", restored.Dimensions(), idx.Dimensions())
	}

	// The restored graph must answer searches identically: same ids in
	// the same order with the same scores.
	for _, q := range [][]float32{vecs[0], vecs[150], vecs[299]} {
		orig, err := idx.Search(q, 10, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := restored.Search(q, 10, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(orig) != len(got) {
			t.Fatalf("result count diverged: %d vs %d", len(orig), len(got))
		}
		for i := range orig {
			if orig[i].ID != got[i].ID {
				t.Errorf("rank %d: %s vs %s", i, orig[i].ID, got[i].ID)
			}
			if orig[i].Similarity != got[i].Similarity {
				t.Errorf("rank %d score: %f vs %f", i, orig[i].Similarity, got[i].Similarity)
			}
		}
	}

	// Metadata and stats survive.
	_, md, ok := restored.Get("doc-42")
	if !ok || md["seq"] != 42 {
		t.Errorf("metadata lost in round trip: %v", md)
	}
	if restored.Stats().Inserts != idx.Stats().Inserts {
		t.Errorf("stats lost in round trip")
	}
}

func TestCompactSnapshotRoundTrip(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	populateRandom(t, idx, 100, 16, 5)

	var buf bytes.Buffer
	snap := idx.CompactSnapshot()
	if !snap.Compact {
		t.Fatal("CompactSnapshot not marked compact")
	}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if restored.Len() != 100 {
		t.Fatalf("restored Len = %d, want 100", restored.Len())
	}

	// Half precision loses accuracy but not ordering on well-spread data.
	vec, _, ok := restored.Get("doc-0")
	if !ok {
		t.Fatal("doc-0 missing after compact round trip")
	}
	orig, _, _ := idx.Get("doc-0")
	for i := range vec {
		diff := vec[i] - orig[i]
		if diff < -0.01 || diff > 0.01 {
			t.Errorf("component %d drifted too far: %f vs %f", i, vec[i], orig[i])
		}
	}
}

func TestSnapshotEmptyIndex(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	var buf bytes.Buffer
	if err := idx.WriteSnapshot(&buf); err != nil {
		t.Fatalf("WriteSnapshot on empty index: %v", err)
	}
	restored, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if restored.Len() != 0 {
		t.Fatalf("restored Len = %d, want 0", restored.Len())
	}
	if err := restored.Insert("a", []float32{1, 2}, nil); err != nil {
		t.Fatalf("insert into restored empty index: %v", err)
	}
}

func TestFromSnapshotRejectsCorruptIDs(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	populateRandom(t, idx, 5, 4, 1)

	snap := idx.Snapshot()
	snap.Nodes[2].ID = ""
	if _, err := FromSnapshot(snap); err == nil {
		t.Fatal("expected error for empty node id")
	}

	snap = idx.Snapshot()
	snap.Nodes[2].ID = snap.Nodes[1].ID
	snap.Nodes[2].InternalID = snap.Nodes[1].InternalID
	if _, err := FromSnapshot(snap); err == nil {
		t.Fatal("expected error for duplicate ids")
	}
}
