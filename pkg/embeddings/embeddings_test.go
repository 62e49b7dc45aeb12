package embeddings

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(64)

	v1, err := e.Embed("the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	v2, err := e.Embed("the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	if len(v1) != 64 {
		t.Fatalf("dimension = %d, want 64", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
}

func TestLocalEmbedderUnitNorm(t *testing.T) {
	e := NewLocalEmbedder(0)
	if e.Dimension() != DefaultLocalDimension {
		t.Fatalf("default dimension = %d, want %d", e.Dimension(), DefaultLocalDimension)
	}

	vec, err := e.Embed("some text with several words")
	if err != nil {
		t.Fatal(err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("norm² = %f, want 1.0", norm)
	}
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder(16)
	vec, err := e.Embed("")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("empty text should produce the zero vector")
		}
	}
}

func TestLocalEmbedderSurfaceSimilarity(t *testing.T) {
	e := NewLocalEmbedder(128)

	a, _ := e.Embed("the cat sat on the mat")
	b, _ := e.Embed("the cat sat on the rug")
	c, _ := e.Embed("quantum chromodynamics lattice simulation")

	simAB := dot(a, b)
	simAC := dot(a, c)
	if simAB <= simAC {
		t.Errorf("near-duplicate scored %f, unrelated %f", simAB, simAC)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{0.1, 0.2, 0.3},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "test-model", 5*time.Second)
	if e.Dimension() != 0 {
		t.Errorf("dimension before first call = %d, want 0", e.Dimension())
	}
	vec, err := e.Embed("hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if e.Dimension() != 3 {
		t.Errorf("dimension after first call = %d, want 3", e.Dimension())
	}
}

func TestOllamaEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing", time.Second)
	if _, err := e.Embed("hello"); err == nil {
		t.Fatal("expected error on non-200 status")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer empty.Close()

	e = NewOllamaEmbedder(empty.URL, "m", time.Second)
	if _, err := e.Embed("hello"); err == nil {
		t.Fatal("expected error on empty embedding")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1, 0, 0, 0}},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "text-embedding-3-small", "secret", time.Second)
	vec, err := e.Embed("hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if e.Dimension() != 4 {
		t.Errorf("dimension = %d, want 4", e.Dimension())
	}
}
