// Package embeddings provides the text-to-vector providers used by the
// vector store. Providers are pluggable: remote HTTP services (Ollama,
// OpenAI) for real semantic embeddings, and a deterministic local embedder
// for tests and offline operation.
//
// Provider failures propagate to callers unmodified; retry policy belongs
// to the provider, not to the store consuming it.
package embeddings

// Embedder converts text into a fixed-length vector representation.
type Embedder interface {
	// Embed returns the embedding vector for the given text. Every call
	// on the same provider must return vectors of the same length.
	Embed(text string) ([]float32, error)
	// Dimension returns the provider's output dimension, or 0 if it is
	// not yet known (remote providers discover it on the first call).
	Dimension() int
}
