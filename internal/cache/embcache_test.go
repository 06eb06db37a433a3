package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmbeddingCache_SaveGet(t *testing.T) {
	c := &EmbeddingCache{Dir: t.TempDir()}
	key := KeyFrom("model", "balance sheet")
	vec := []float32{0.25, -0.5, 1}
	if err := c.Save(context.Background(), key, "model", vec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if len(got) != 3 || got[1] != -0.5 {
		t.Fatalf("unexpected vector %v", got)
	}
	if KeyFrom("model", "a") == KeyFrom("other", "a") {
		t.Fatalf("key must depend on model")
	}
}

func TestEmbeddingCache_CorruptIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := &EmbeddingCache{Dir: dir}
	key := KeyFrom("m", "t")
	if err := os.WriteFile(filepath.Join(dir, key+embeddingSuffix), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(context.Background(), key); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

func TestEmbeddingCache_Purge(t *testing.T) {
	dir := t.TempDir()
	c := &EmbeddingCache{Dir: dir}
	key := KeyFrom("m", "t")
	if err := c.Save(context.Background(), key, "m", []float32{1}); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, key+embeddingSuffix), old, old); err != nil {
		t.Fatal(err)
	}
	n, err := PurgeEmbeddingCacheByAge(dir, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
}
