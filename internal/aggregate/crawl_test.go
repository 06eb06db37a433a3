package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/search"
)

type pagedProvider struct {
	pages []search.Page
	err   error
	calls int
}

func (p *pagedProvider) Name() string { return "paged" }

func (p *pagedProvider) Search(_ context.Context, _ string, cursor string) (search.Page, error) {
	p.calls++
	if p.calls > len(p.pages) {
		return search.Page{}, p.err
	}
	return p.pages[p.calls-1], nil
}

func collect(t *testing.T, c *Crawler) ([]string, error) {
	t.Helper()
	var urls []string
	for r, err := range c.Candidates(context.Background()) {
		if err != nil {
			return urls, err
		}
		urls = append(urls, r.URL)
	}
	return urls, nil
}

func TestCandidates_DedupAcrossPages(t *testing.T) {
	p := &pagedProvider{pages: []search.Page{
		{Results: []search.Result{{URL: "https://a.example/1.pdf"}, {URL: "ftp://a.example/x"}}, Next: "2"},
		{Results: []search.Result{{URL: "https://A.example/1.pdf#top"}, {URL: "https://b.example/2.pdf"}}},
	}}
	urls, err := collect(t, &Crawler{Provider: p, Config: search.CrawlConfig{Query: "acme"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a.example/1.pdf" || urls[1] != "https://b.example/2.pdf" {
		t.Fatalf("unexpected candidates: %v", urls)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", p.calls)
	}
}

func TestCandidates_PageBudget(t *testing.T) {
	p := &pagedProvider{pages: []search.Page{
		{Results: []search.Result{{URL: "https://a.example/1.pdf"}}, Next: "2"},
		{Results: []search.Result{{URL: "https://a.example/2.pdf"}}, Next: "3"},
		{Results: []search.Result{{URL: "https://a.example/3.pdf"}}},
	}}
	urls, _ := collect(t, &Crawler{Provider: p, Config: search.CrawlConfig{PageBudget: 2}})
	if len(urls) != 2 || p.calls != 2 {
		t.Fatalf("budget not honored: urls=%v calls=%d", urls, p.calls)
	}
}

func TestCandidates_ProviderErrorIsFetchError(t *testing.T) {
	p := &pagedProvider{
		pages: []search.Page{{Results: []search.Result{{URL: "https://a.example/1.pdf"}}, Next: "2"}},
		err:   errors.New("boom"),
	}
	urls, err := collect(t, &Crawler{Provider: p})
	if len(urls) != 1 {
		t.Fatalf("expected first page results to stand, got %v", urls)
	}
	if !errors.Is(err, faults.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestCandidates_StopsWhenConsumerStops(t *testing.T) {
	p := &pagedProvider{pages: []search.Page{
		{Results: []search.Result{{URL: "https://a.example/1.pdf"}, {URL: "https://a.example/2.pdf"}}, Next: "2"},
		{Results: []search.Result{{URL: "https://a.example/3.pdf"}}},
	}}
	c := &Crawler{Provider: p}
	for range c.Candidates(context.Background()) {
		break
	}
	if p.calls != 1 {
		t.Fatalf("expected lazy paging, got %d calls", p.calls)
	}
}
