// Package embedcache implements the process-wide embedding cache required
// by spec §4.3.2: "Embedding Client calls MUST be cached by exact text key
// for the lifetime of the process."
package embedcache

import (
	"context"
	"sync"

	"github.com/siherrmann/graphrag/llm"
)

// Cache wraps an llm.EmbedFunc with an exact-text-key cache. Empty vectors
// (including ones returned after an error) are cached too, so a text that
// consistently fails to embed is not retried on every call.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	embed   llm.EmbedFunc
}

// New wraps embed in a Cache. A nil embed makes Get always return (nil, nil).
func New(embed llm.EmbedFunc) *Cache {
	return &Cache{entries: make(map[string][]float32), embed: embed}
}

// Get returns the cached embedding for text, computing and storing it on
// first use.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, error) {
	if c.embed == nil {
		return nil, nil
	}

	c.mu.RLock()
	if v, ok := c.entries[text]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	vec, err := c.embed(ctx, text)
	if err != nil {
		c.mu.Lock()
		c.entries[text] = nil
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.entries[text] = vec
	c.mu.Unlock()
	return vec, nil
}

// Len reports the number of distinct texts cached, including failures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EmbedFunc exposes the cache itself as an llm.EmbedFunc, so it can be
// passed anywhere a plain embedder is expected.
func (c *Cache) EmbedFunc() llm.EmbedFunc {
	return c.Get
}
