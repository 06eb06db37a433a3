package aggregate

import (
	"context"
	"iter"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/search"
)

// DefaultPageBudget bounds how many result pages a crawl requests.
const DefaultPageBudget = 5

// Crawler walks a provider's result pages and yields each distinct candidate
// URL once, in discovery order.
type Crawler struct {
	Provider search.Provider
	Config   search.CrawlConfig
}

// Candidates returns a lazy candidate sequence. A provider failure is yielded
// once as a FetchError and ends the sequence; results already yielded stand.
func (c *Crawler) Candidates(ctx context.Context) iter.Seq2[search.Result, error] {
	return func(yield func(search.Result, error) bool) {
		budget := c.Config.PageBudget
		if budget <= 0 {
			budget = DefaultPageBudget
		}
		seen := map[string]struct{}{}
		cursor := ""
		for page := 1; page <= budget; page++ {
			if ctx.Err() != nil {
				return
			}
			p, err := c.Provider.Search(ctx, c.Config.Query, cursor)
			if err != nil {
				yield(search.Result{}, faults.New(faults.FetchError, "search", c.Provider.Name(), err))
				return
			}
			log.Debug().Str("provider", c.Provider.Name()).Int("page", page).Int("results", len(p.Results)).Msg("search page")
			for _, r := range p.Results {
				key, ok := Normalize(r.URL)
				if !ok {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				r.URL = key
				if !yield(r, nil) {
					return
				}
			}
			if p.Next == "" || p.Next == cursor {
				return
			}
			cursor = p.Next
		}
	}
}
