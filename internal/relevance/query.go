// Package relevance holds the run's relevance query: the keyword set used by
// the lexical gate, the topic keywords used for page line matching, and the
// semantic descriptor
// with its embedding computed once before any filtering starts.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/embed"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/textutil"
)

// ErrEmptyEntity is the configuration error raised for a blank entity name.
var ErrEmptyEntity = errors.New("entity name is empty")

// DefaultKeywords are phrases that head financial statement pages.
var DefaultKeywords = []string{
	"balance sheet",
	"income statement",
	"cash flow statement",
	"financial statement",
	"financial summary",
	"auditors report",
	"profit and loss account",
	"financial statements",
	"consolidated balance sheets",
	"consolidated income statements",
	"consolidated cash flow statements",
	"consolidated statements of comprehensive income",
}

// DefaultDescriptor describes the content a relevant page carries.
const DefaultDescriptor = "Financial statements include: Assets, Liabilities, Equity, Revenue, Expenses, " +
	"Net Income, Cash Flows, Operating Expenses, Gross Profit, Depreciation, and Amortization. " +
	"Typical rows include 'Current Assets', 'Total Liabilities', 'Shareholder Equity', " +
	"'Net Profit', and 'Cash Flow'. Columns often represent time periods such as 'Q1 2023', 'FY2023', or 'Year Ended'."

// Query is immutable after Build. Accessors return copies.
type Query struct {
	entity     string
	keywords   []string
	topics     []string
	descriptor string
	embedding  []float32
	embedErr   error
}

// Build assembles the query for entity. The keyword set is the folded,
// de-duplicated union of the entity name and keywords, in first-seen order.
// Topics are the same set without the entity name, which appears in the
// running header of nearly every page of the entity's own reports.
// The descriptor embedding is computed once here and unit-normalized. An
// embedding failure does not fail the build: the query is still usable by
// the lexical gate and every later Similarity call reports the failure, so
// pages fail closed.
func Build(ctx context.Context, e embed.Embedder, entity string, keywords []string, descriptor string) (*Query, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return nil, ErrEmptyEntity
	}
	q := &Query{entity: entity, descriptor: strings.TrimSpace(descriptor)}
	name := foldLine(entity)
	seen := map[string]struct{}{}
	for _, k := range append([]string{entity}, keywords...) {
		f := foldLine(k)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		q.keywords = append(q.keywords, f)
		if f != name {
			q.topics = append(q.topics, f)
		}
	}
	if q.descriptor == "" {
		q.embedErr = fmt.Errorf("empty descriptor: %w", faults.ErrEmbedding)
	} else if e == nil {
		q.embedErr = fmt.Errorf("no embedder configured: %w", faults.ErrEmbedding)
	} else {
		v, err := e.Embed(ctx, q.descriptor)
		if err == nil {
			v, err = embed.Normalize(v)
		}
		q.embedErr = err
		q.embedding = v
	}
	if q.embedErr != nil {
		q.embedding = nil
		q.embedErr = faults.New(faults.EmbeddingError, "query", "descriptor", q.embedErr)
		log.Warn().Err(q.embedErr).Msg("descriptor embedding failed; every page will be rejected")
	}
	return q, nil
}

// Entity is the trimmed entity name.
func (q *Query) Entity() string { return q.entity }

// Keywords returns the folded keyword set.
func (q *Query) Keywords() []string { return append([]string(nil), q.keywords...) }

// Topics returns the folded line keywords, without the entity name.
func (q *Query) Topics() []string { return append([]string(nil), q.topics...) }

// Descriptor returns the semantic descriptor text.
func (q *Query) Descriptor() string { return q.descriptor }

// Embedding returns a copy of the unit descriptor vector, or nil after a failed build.
func (q *Query) Embedding() []float32 { return append([]float32(nil), q.embedding...) }

// MatchLine reports whether the folded line contains any topic keyword.
func (q *Query) MatchLine(line string) bool {
	f := foldLine(line)
	if f == "" {
		return false
	}
	for _, k := range q.topics {
		if strings.Contains(f, k) {
			return true
		}
	}
	return false
}

// Similarity is the cosine between v and the descriptor embedding.
func (q *Query) Similarity(v []float32) (float64, error) {
	if q.embedErr != nil {
		return 0, q.embedErr
	}
	return embed.Cosine(q.embedding, v)
}

func foldLine(s string) string { return strings.Join(strings.Fields(textutil.Fold(s)), " ") }
