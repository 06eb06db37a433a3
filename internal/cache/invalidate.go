package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeHTTPCacheByAge removes HTTP cache entries older than maxAge, judged by
// the SavedAt timestamp in <key>.meta.json. Both meta and body are removed.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e HTTPEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		return nil
	})
	return removed, err
}

// PurgeEmbeddingCacheByAge removes vector entries whose modification time is
// older than maxAge.
func PurgeEmbeddingCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), embeddingSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime().UTC()) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		return nil
	})
	return removed, err
}

type lruEntry struct {
	paths []string
	size  int64
	used  time.Time
}

// EnforceHTTPCacheLimits evicts least recently used HTTP entries until the
// cache holds at most maxCount entries and maxBytes of bodies. Zero disables
// the respective limit. Recency is the body file's modification time.
func EnforceHTTPCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	entries, err := scanEntries(dir, ".body", func(base string) []string {
		return []string{base + ".body", base + ".meta.json"}
	})
	if err != nil {
		return 0, err
	}
	return evict(entries, maxBytes, maxCount), nil
}

// EnforceEmbeddingCacheLimits applies the same policy to vector entries.
func EnforceEmbeddingCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	entries, err := scanEntries(dir, embeddingSuffix, func(base string) []string {
		return []string{base + embeddingSuffix}
	})
	if err != nil {
		return 0, err
	}
	return evict(entries, maxBytes, maxCount), nil
}

func scanEntries(dir, suffix string, files func(base string) []string) ([]lruEntry, error) {
	var out []lruEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, lruEntry{
			paths: files(strings.TrimSuffix(path, suffix)),
			size:  info.Size(),
			used:  info.ModTime(),
		})
		return nil
	})
	return out, err
}

func evict(entries []lruEntry, maxBytes int64, maxCount int) int {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0
	}
	// Oldest first.
	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	count := len(entries)
	removed := 0
	for _, e := range entries {
		overCount := maxCount > 0 && count > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		for _, p := range e.paths {
			_ = os.Remove(p)
		}
		total -= e.size
		count--
		removed++
	}
	return removed
}
