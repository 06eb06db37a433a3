package search

import (
	"context"
	"strings"
)

// Result represents a single search hit from any provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"-"` // provider name for observability
}

// Page is one page of results. Next is the opaque cursor of the following
// page, empty on the last page.
type Page struct {
	Results []Result
	Next    string
}

// Provider is a paginated search backend. An empty cursor requests the first page.
type Provider interface {
	Search(ctx context.Context, query string, cursor string) (Page, error)
	Name() string
}

// DefaultQueryTemplate targets annual report PDFs of the entity.
const DefaultQueryTemplate = "{entity} annual report filetype:pdf"

// BuildQuery substitutes the entity into template. A template without the
// placeholder gets the entity prepended.
func BuildQuery(template, entity string) string {
	entity = strings.TrimSpace(entity)
	template = strings.TrimSpace(template)
	if template == "" {
		template = DefaultQueryTemplate
	}
	if !strings.Contains(template, "{entity}") {
		return strings.TrimSpace(entity + " " + template)
	}
	return strings.ReplaceAll(template, "{entity}", entity)
}

// CrawlConfig bounds one discovery crawl.
type CrawlConfig struct {
	Query string
	// PageBudget is the maximum number of result pages requested.
	PageBudget int
}
