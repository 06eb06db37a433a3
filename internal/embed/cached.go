package embed

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/cache"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
)

const defaultMemoryTTL = time.Hour

// Cached decorates an Embedder with an in-memory cache and an optional
// on-disk cache. Both are keyed by model and exact input text.
type Cached struct {
	inner   Embedder
	model   string
	mem     *gocache.Cache
	disk    *cache.EmbeddingCache
	metrics *metrics.Funnel
}

// NewCached wraps inner. disk may be nil.
func NewCached(inner Embedder, model string, disk *cache.EmbeddingCache, ttl time.Duration, m *metrics.Funnel) *Cached {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &Cached{
		inner:   inner,
		model:   model,
		mem:     gocache.New(ttl, 2*ttl),
		disk:    disk,
		metrics: m,
	}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.KeyFrom(c.model, text)
	if x, ok := c.mem.Get(key); ok {
		c.metrics.Embedding("cache_hit", 0)
		return clone(x.([]float32)), nil
	}
	if c.disk != nil {
		if v, ok, err := c.disk.Get(ctx, key); err == nil && ok {
			c.mem.Set(key, v, gocache.DefaultExpiration)
			c.metrics.Embedding("cache_hit", 0)
			return clone(v), nil
		}
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.mem.Set(key, clone(v), gocache.DefaultExpiration)
	if c.disk != nil {
		if err := c.disk.Save(ctx, key, c.model, v); err != nil {
			log.Debug().Err(err).Msg("embedding cache save failed")
		}
	}
	return v, nil
}

// Flush drops all in-memory entries.
func (c *Cached) Flush() { c.mem.Flush() }

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
