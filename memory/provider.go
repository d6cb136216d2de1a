package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// ErrEmbedderUnavailable is returned by embedding-dependent operations
// when the provider failed to load. Callers fail closed: retrieval
// returns no results and chunk storage is skipped.
var ErrEmbedderUnavailable = errors.New("embedding provider unavailable")

// LazyEmbedder wraps an Embedder behind at-most-once initialization.
// The first successful load fixes the model and dimension for the
// process lifetime. A failed load leaves the provider disabled; it is
// never retried, and every Embed call reports ErrEmbedderUnavailable.
type LazyEmbedder struct {
	load func() (Embedder, error)

	once     sync.Once
	embedder Embedder
	err      error
}

// NewLazyEmbedder returns a provider backed by the given loader.
func NewLazyEmbedder(load func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{load: load}
}

func (p *LazyEmbedder) init() {
	p.once.Do(func() {
		if p.load == nil {
			p.err = errors.New("no embedder loader configured")
			return
		}
		p.embedder, p.err = p.load()
		if p.err != nil {
			log.Printf("[MEMORY] embedding provider failed to load: %v", p.err)
			p.embedder = nil
		}
	})
}

// Available reports whether the provider loaded successfully.
func (p *LazyEmbedder) Available() bool {
	p.init()
	return p.err == nil
}

// Embed converts text to an embedding vector, failing closed when the
// provider is disabled.
func (p *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	p.init()
	if p.err != nil {
		return nil, ErrEmbedderUnavailable
	}
	return p.embedder.Embed(ctx, text)
}

// Dimensions returns the embedding size, or 0 when disabled.
func (p *LazyEmbedder) Dimensions() int {
	p.init()
	if p.err != nil {
		return 0
	}
	return p.embedder.Dimensions()
}

// CachingEmbedder memoizes text-to-vector results in front of another
// Embedder. Repeated ingest of overlapping history re-embeds the same
// chunk text; the cache absorbs that cost.
type CachingEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachingEmbedder wraps inner with an LRU-ish cache holding up to
// maxEntries vectors.
func NewCachingEmbedder(inner Embedder, maxEntries int64) (*CachingEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding on miss.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (c *CachingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Useful in tests.
func (c *CachingEmbedder) Wait() {
	c.cache.Wait()
}
