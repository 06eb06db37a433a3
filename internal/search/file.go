package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider loads candidates from a local JSON file for offline use. The
// file is an array of {"title": "...", "url": "...", "snippet": "..."}
// objects and is served as a single page regardless of the query.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, _ string, cursor string) (Page, error) {
	if strings.TrimSpace(f.Path) == "" {
		return Page{}, errors.New("file provider path is empty")
	}
	if cursor != "" {
		return Page{}, nil
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return Page{}, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return Page{}, err
	}
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		r.Source = f.Name()
		out = append(out, r)
	}
	return Page{Results: out}, nil
}
