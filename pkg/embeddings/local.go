package embeddings

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic, offline embedder. It hashes word and
// character-trigram features into a fixed number of buckets and normalizes
// the result to unit length.
//
// The vectors carry no learned semantics: two texts score high only when
// they share surface features. That is enough for tests, for degraded
// operation without a remote provider, and for exercising the full
// store/search path deterministically.
type LocalEmbedder struct {
	dim int
}

// DefaultLocalDimension matches the output width of common small embedding
// models (all-minilm).
const DefaultLocalDimension = 384

// NewLocalEmbedder creates a deterministic embedder with the given output
// dimension. Non-positive dimensions fall back to DefaultLocalDimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) Embed(text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	for _, token := range tokenize(text) {
		e.addFeature(vec, token, 1.0)
		// Character trigrams give partial credit to near-identical
		// words (plurals, typos).
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			e.addFeature(vec, string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dimension returns the configured output dimension.
func (e *LocalEmbedder) Dimension() int {
	return e.dim
}

// addFeature hashes a feature into two buckets with opposite signs, which
// spreads mass more evenly than a single-bucket scheme.
func (e *LocalEmbedder) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	vec[sum%uint64(e.dim)] += weight
	sign := float32(1.0)
	if (sum>>32)&1 == 1 {
		sign = -1.0
	}
	vec[(sum>>17)%uint64(e.dim)] += sign * weight * 0.5
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
