package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// EmbeddingCache stores embedding vectors keyed by model and input text.
type EmbeddingCache struct {
	Dir         string
	StrictPerms bool
}

type embeddingEntry struct {
	Model   string    `json:"model"`
	Vector  []float32 `json:"vector"`
	SavedAt time.Time `json:"saved_at"`
}

const embeddingSuffix = ".vec.json"

// KeyFrom builds a cache key from model and input text.
func KeyFrom(model string, text string) string {
	return digest(model + "\n\n" + text)
}

func (c *EmbeddingCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+embeddingSuffix)
}

// Get returns the cached vector if present. A missing or unreadable entry is
// a miss, not an error.
func (c *EmbeddingCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	var e embeddingEntry
	if err := json.Unmarshal(b, &e); err != nil || len(e.Vector) == 0 {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e.Vector, true, nil
}

// Save writes a vector to the cache.
func (c *EmbeddingCache) Save(_ context.Context, key string, model string, vec []float32) error {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	b, err := json.Marshal(embeddingEntry{Model: model, Vector: vec, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(key), b, fileMode(c.StrictPerms))
}
