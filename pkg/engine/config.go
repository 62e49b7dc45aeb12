package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diogenlabs/semvec/pkg/embeddings"
)

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	// Type is one of "local", "ollama" or "openai".
	Type string `yaml:"type"`
	// URL is the endpoint for remote backends.
	URL string `yaml:"url"`
	// Model names the embedding model for remote backends.
	Model string `yaml:"model"`
	// APIKey authenticates OpenAI-compatible backends. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string `yaml:"api_key"`
	// Timeout bounds a single embedding request (default 60s).
	Timeout time.Duration `yaml:"timeout"`
	// Dimension sets the local embedder's vector size (default 384).
	Dimension int `yaml:"dimension"`
}

func newEmbedder(cfg EmbedderConfig) (embeddings.Embedder, error) {
	switch cfg.Type {
	case "", "local":
		return embeddings.NewLocalEmbedder(cfg.Dimension), nil
	case "ollama":
		return embeddings.NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Timeout), nil
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return embeddings.NewOpenAIEmbedder(cfg.URL, cfg.Model, apiKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("engine: unknown embedder type %q", cfg.Type)
	}
}

// LoadOptions reads a YAML configuration file using strict parsing: unknown
// fields are an error. An empty path returns DefaultOptions("").
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions("")

	if path == "" {
		return opts, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open engine config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&opts); err != nil {
		return opts, fmt.Errorf("YAML syntax error in engine config: %w", err)
	}
	return opts, nil
}
