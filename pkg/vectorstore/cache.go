package vectorstore

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// embedCache is a bounded text-to-vector cache in front of the embedder.
// It is advisory: eviction never affects correctness, only the cost of
// re-embedding a recently seen text.
type embedCache struct {
	entries *lru.Cache[string, []float32]
}

func newEmbedCache(size int) (*embedCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &embedCache{entries: entries}, nil
}

func (c *embedCache) get(text string) ([]float32, bool) {
	return c.entries.Get(text)
}

func (c *embedCache) put(text string, vec []float32) {
	c.entries.Add(text, vec)
}
