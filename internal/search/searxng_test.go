package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSearxNG_Search_ParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Doc", "url": "https://example.com/a.pdf", "content": "snippet"},
				{"title": "Bad", "url": "", "content": "no url"},
			},
		})
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := s.Search(context.Background(), "query", "")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected 1 valid result, got %d", len(got.Results))
	}
	if got.Results[0].URL != "https://example.com/a.pdf" {
		t.Fatalf("unexpected url: %q", got.Results[0].URL)
	}
	if got.Results[0].Source != "searxng" {
		t.Fatalf("unexpected source: %q", got.Results[0].Source)
	}
	if got.Next != "2" {
		t.Fatalf("expected next cursor 2, got %q", got.Next)
	}
}

func TestSearxNG_Search_PagenoFromCursor(t *testing.T) {
	var (
		mu     sync.Mutex
		pageno string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pageno = r.URL.Query().Get("pageno")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	s := &SearxNG{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := s.Search(context.Background(), "query", "3")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if pageno != "3" {
		t.Fatalf("expected pageno=3, got %q", pageno)
	}
	if got.Next != "" {
		t.Fatalf("empty page must end pagination, got next %q", got.Next)
	}
}

func TestSearxNG_Search_RejectsBadCursor(t *testing.T) {
	s := &SearxNG{BaseURL: "http://127.0.0.1:1"}
	if _, err := s.Search(context.Background(), "q", "zero"); err == nil {
		t.Fatalf("expected error for non-numeric cursor")
	}
}

func TestBuildQuery(t *testing.T) {
	cases := []struct{ tmpl, entity, want string }{
		{"", "Acme Corp", "Acme Corp annual report filetype:pdf"},
		{"{entity} sustainability report", "Acme", "Acme sustainability report"},
		{"filetype:pdf", "Acme", "Acme filetype:pdf"},
	}
	for _, c := range cases {
		if got := BuildQuery(c.tmpl, c.entity); got != c.want {
			t.Fatalf("BuildQuery(%q,%q)=%q want %q", c.tmpl, c.entity, got, c.want)
		}
	}
}
