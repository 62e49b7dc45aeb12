package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// OllamaEmbedder implements Embedder against a remote Ollama instance.
type OllamaEmbedder struct {
	URL    string
	Model  string
	Client *http.Client

	dim atomic.Int64
}

// NewOllamaEmbedder creates an embedder for the given Ollama embeddings
// endpoint (e.g. http://localhost:11434/api/embeddings) and model. The
// timeout bounds each request; embedding is the only externally-bounded
// step in the engine, so it gets the only deadline.
func NewOllamaEmbedder(url, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		URL:    url,
		Model:  model,
		Client: &http.Client{Timeout: timeout},
	}
}

func (e *OllamaEmbedder) Embed(text string) ([]float32, error) {
	payload := map[string]any{
		"model":  e.Model,
		"prompt": text,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := e.Client.Post(e.URL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status: %s", resp.Status)
	}

	var ollamaResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", e.Model)
	}

	e.dim.Store(int64(len(ollamaResp.Embedding)))
	return ollamaResp.Embedding, nil
}

// Dimension returns the vector length observed on the first successful
// Embed call, or 0 before that.
func (e *OllamaEmbedder) Dimension() int {
	return int(e.dim.Load())
}
