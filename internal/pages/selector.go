// Package pages decides, page by page, whether a document page is worth
// table extraction: a keyword line scan first and an embedding similarity
// check only for pages that matched.
package pages

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/budget"
	"github.com/hyperifyio/tablefunnel/internal/embed"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
)

// DefaultThreshold is the minimum cosine similarity for a page to qualify.
const DefaultThreshold = 0.7

// Matcher is the part of the relevance query used by the selector.
type Matcher interface {
	MatchLine(line string) bool
	Similarity(v []float32) (float64, error)
}

// Candidate is the transient view of one page under evaluation.
type Candidate struct {
	DocumentID string
	PageIndex  int
	Text       string
}

// Verdict records how far a page got through the funnel.
type Verdict struct {
	PageIndex    int
	MatchedLines []string
	// Matched is true when at least one line contained a keyword.
	Matched bool
	// Scored is true only when an embedding similarity was computed.
	Scored   bool
	Score    float64
	Accepted bool
	Err      error
}

// Selector is safe for concurrent use.
type Selector struct {
	Query     Matcher
	Embedder  embed.Embedder
	Threshold float64
	// MaxInputTokens truncates the context before embedding; zero disables.
	MaxInputTokens int
	Metrics        *metrics.Funnel
}

// Scan returns the lines of text containing any keyword, in page order.
func (s *Selector) Scan(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && s.Query.MatchLine(line) {
			out = append(out, line)
		}
	}
	return out
}

// Context joins matched lines into the text that is embedded.
func Context(lines []string) string { return strings.Join(lines, " ") }

// Evaluate runs both stages for one page. Embedding failures reject the page
// and are reported in Verdict.Err, never returned.
func (s *Selector) Evaluate(ctx context.Context, c Candidate) Verdict {
	v := Verdict{PageIndex: c.PageIndex}
	v.MatchedLines = s.Scan(c.Text)
	if len(v.MatchedLines) == 0 {
		s.Metrics.Page(metrics.PageNoMatch, false, 0)
		return v
	}
	v.Matched = true

	text := budget.TruncateToTokens(Context(v.MatchedLines), s.MaxInputTokens)
	vec, err := s.Embedder.Embed(ctx, text)
	if err == nil {
		v.Score, err = s.Query.Similarity(vec)
	}
	if err != nil {
		v.Score = 0
		v.Err = faults.OnPage(faults.EmbeddingError, "pages", c.DocumentID, c.PageIndex, err)
		log.Warn().Err(v.Err).Str("doc", c.DocumentID).Int("page", c.PageIndex+1).Msg("page rejected")
		s.Metrics.Fault(string(faults.EmbeddingError), "pages")
		s.Metrics.Page(metrics.PageEmbeddingError, false, 0)
		return v
	}
	v.Scored = true
	v.Accepted = v.Score >= s.Threshold
	outcome := metrics.PageBelowThreshold
	if v.Accepted {
		outcome = metrics.PageAccepted
	}
	s.Metrics.Page(outcome, true, v.Score)
	log.Debug().Str("doc", c.DocumentID).Int("page", c.PageIndex+1).Int("lines", len(v.MatchedLines)).
		Float64("score", v.Score).Bool("accepted", v.Accepted).Msg("page verdict")
	return v
}
