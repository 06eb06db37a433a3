// Package pipeline runs the page-level part of the funnel over the documents
// accepted during acquisition: every page goes through the page selector and
// qualifying pages through table extraction.
package pipeline

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/tablefunnel/internal/acquire"
	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/extract"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
	"github.com/hyperifyio/tablefunnel/internal/pages"
	"github.com/hyperifyio/tablefunnel/internal/tables"
)

// DefaultWorkers bounds concurrently processed documents.
const DefaultWorkers = 4

// Pages is an open document.
type Pages interface {
	NumPages() int
	PageText(i int) (string, error)
	Tables(i int) ([]tables.Table, error)
	Close() error
}

// Opener opens a stored document.
type Opener interface {
	Open(path string) (Pages, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(path string) (Pages, error)

func (f OpenFunc) Open(path string) (Pages, error) { return f(path) }

// PageSelector evaluates one page.
type PageSelector interface {
	Evaluate(ctx context.Context, c pages.Candidate) pages.Verdict
}

// TableExtractor persists the tables of one qualifying page.
type TableExtractor interface {
	ExtractPage(ctx context.Context, docID string, src extract.TableSource, pageIndex int) ([]artifact.Artifact, error)
}

// PageReport is the terminal state of one page.
type PageReport struct {
	Page     int     `json:"page"`
	Matched  bool    `json:"matched"`
	Scored   bool    `json:"scored"`
	Score    float64 `json:"score,omitempty"`
	Accepted bool    `json:"accepted"`
	Tables   int     `json:"tables"`
	Err      string  `json:"error,omitempty"`
}

// DocumentReport collects what happened to one accepted document.
type DocumentReport struct {
	Document   acquire.Document    `json:"document"`
	DocumentID string              `json:"document_id"`
	Pages      []PageReport        `json:"pages"`
	Artifacts  []artifact.Artifact `json:"artifacts"`
	Err        string              `json:"error,omitempty"`
}

// Summary is the outcome of Process.
type Summary struct {
	Documents     []DocumentReport
	Artifacts     []artifact.Artifact
	PagesScanned  int
	PagesMatched  int
	PagesAccepted int
}

// Pipeline is configured once per run.
type Pipeline struct {
	Opener    Opener
	Selector  PageSelector
	Extractor TableExtractor
	Workers   int
	Metrics   *metrics.Funnel
}

// Process handles each document in its own worker, pages in order. Failures
// on one document or page are logged and never stop the others.
func (p *Pipeline) Process(ctx context.Context, docs []acquire.Document) Summary {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	reports := make([]DocumentReport, len(docs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, d := range docs {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("remaining", len(docs)-i).Msg("pipeline interrupted")
			reports = reports[:i]
			break
		}
		g.Go(func() error {
			reports[i] = p.document(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	var s Summary
	for _, r := range reports {
		s.Documents = append(s.Documents, r)
		s.Artifacts = append(s.Artifacts, r.Artifacts...)
		for _, pr := range r.Pages {
			s.PagesScanned++
			if pr.Matched {
				s.PagesMatched++
			}
			if pr.Accepted {
				s.PagesAccepted++
			}
		}
	}
	sort.SliceStable(s.Artifacts, func(i, j int) bool {
		a, b := s.Artifacts[i], s.Artifacts[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Table < b.Table
	})
	return s
}

func (p *Pipeline) document(ctx context.Context, d acquire.Document) DocumentReport {
	rep := DocumentReport{Document: d, DocumentID: d.ID()}
	doc, err := p.Opener.Open(d.Path)
	if err != nil {
		fe := faults.New(faults.ParseError, "pipeline", d.URL, err)
		log.Warn().Err(fe).Str("doc", rep.DocumentID).Msg("document skipped")
		p.Metrics.Fault(string(faults.ParseError), "pipeline")
		rep.Err = fe.Error()
		return rep
	}
	defer doc.Close()

	n := doc.NumPages()
	log.Info().Str("doc", rep.DocumentID).Str("url", d.URL).Int("pages", n).Msg("processing document")
	for i := 0; i < n; i++ {
		pr := PageReport{Page: i + 1}
		text, err := doc.PageText(i)
		if err != nil {
			fe := faults.OnPage(faults.ParseError, "pipeline", rep.DocumentID, i, err)
			log.Warn().Err(fe).Str("doc", rep.DocumentID).Int("page", i+1).Msg("page skipped")
			p.Metrics.Fault(string(faults.ParseError), "pipeline")
			pr.Err = fe.Error()
			rep.Pages = append(rep.Pages, pr)
			continue
		}
		v := p.Selector.Evaluate(ctx, pages.Candidate{DocumentID: rep.DocumentID, PageIndex: i, Text: text})
		pr.Matched, pr.Scored, pr.Score, pr.Accepted = v.Matched, v.Scored, v.Score, v.Accepted
		if v.Err != nil {
			pr.Err = v.Err.Error()
		}
		if v.Accepted {
			arts, err := p.Extractor.ExtractPage(ctx, rep.DocumentID, doc, i)
			if err != nil {
				log.Warn().Err(err).Str("doc", rep.DocumentID).Int("page", i+1).Msg("table extraction failed")
				pr.Err = err.Error()
			}
			pr.Tables = len(arts)
			rep.Artifacts = append(rep.Artifacts, arts...)
		}
		rep.Pages = append(rep.Pages, pr)
	}
	return rep
}
