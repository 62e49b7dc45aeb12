package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API or
// any compatible endpoint.
type OpenAIEmbedder struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client

	dim atomic.Int64
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible endpoint.
// An empty url defaults to the official API.
func NewOpenAIEmbedder(url, model, apiKey string, timeout time.Duration) *OpenAIEmbedder {
	if url == "" {
		url = "https://api.openai.com/v1/embeddings"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIEmbedder{
		URL:    url,
		Model:  model,
		APIKey: apiKey,
		Client: &http.Client{Timeout: timeout},
	}
}

func (e *OpenAIEmbedder) Embed(text string) ([]float32, error) {
	payload := map[string]any{
		"input": text,
		"model": e.Model,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai returned status: %s", resp.Status)
	}

	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(openaiResp.Data) == 0 || len(openaiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned no embedding for model %s", e.Model)
	}

	embedding := openaiResp.Data[0].Embedding
	e.dim.Store(int64(len(embedding)))
	return embedding, nil
}

// Dimension returns the vector length observed on the first successful
// Embed call, or 0 before that.
func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dim.Load())
}
