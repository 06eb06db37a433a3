package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hyperifyio/tablefunnel/internal/acquire"
	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/extract"
	"github.com/hyperifyio/tablefunnel/internal/pages"
	"github.com/hyperifyio/tablefunnel/internal/tables"
)

type fakeDoc struct {
	texts    []string
	textErr  map[int]error
	tables   map[int][]tables.Table
	tableErr map[int]error
	closed   bool
}

func (d *fakeDoc) NumPages() int { return len(d.texts) }

func (d *fakeDoc) PageText(i int) (string, error) {
	if err := d.textErr[i]; err != nil {
		return "", err
	}
	return d.texts[i], nil
}

func (d *fakeDoc) Tables(i int) ([]tables.Table, error) {
	if err := d.tableErr[i]; err != nil {
		return nil, err
	}
	return d.tables[i], nil
}

func (d *fakeDoc) Close() error { d.closed = true; return nil }

// keywordSelector accepts pages mentioning "balance".
type keywordSelector struct {
	mu    sync.Mutex
	calls int
}

func (s *keywordSelector) Evaluate(_ context.Context, c pages.Candidate) pages.Verdict {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	ok := strings.Contains(c.Text, "balance")
	v := pages.Verdict{PageIndex: c.PageIndex, Matched: ok}
	if ok {
		v.Scored, v.Score, v.Accepted = true, 0.9, true
	}
	return v
}

type countingExtractor struct {
	mu    sync.Mutex
	inner *extract.Extractor
	pages []int
}

func (e *countingExtractor) ExtractPage(ctx context.Context, docID string, src extract.TableSource, i int) ([]artifact.Artifact, error) {
	e.mu.Lock()
	e.pages = append(e.pages, i)
	e.mu.Unlock()
	return e.inner.ExtractPage(ctx, docID, src, i)
}

func grid() []tables.Table {
	return []tables.Table{{Rows: [][]string{{"Assets", "100"}, {"Liabilities", "40"}}}}
}

func TestProcess_OnlyQualifyingPagesAreExtracted(t *testing.T) {
	good := &fakeDoc{
		texts:    []string{"Consolidated balance sheet", "Chairman letter", "balance continued"},
		tables:   map[int][]tables.Table{0: grid(), 1: grid(), 2: grid()},
		tableErr: map[int]error{2: errors.New("corrupt content stream")},
	}
	docs := map[string]*fakeDoc{"/docs/001_a.pdf": good}
	opener := OpenFunc(func(path string) (Pages, error) {
		d, ok := docs[path]
		if !ok {
			return nil, errors.New("not a pdf")
		}
		return d, nil
	})
	ex := &countingExtractor{inner: &extract.Extractor{Writer: &artifact.Store{Dir: t.TempDir(), Encoder: artifact.CSV{}}}}
	sel := &keywordSelector{}
	p := &Pipeline{Opener: opener, Selector: sel, Extractor: ex, Workers: 2}

	in := []acquire.Document{
		{URL: "https://acme.example/a.pdf", Path: "/docs/001_a.pdf", Ordinal: 1},
		{URL: "https://acme.example/b.pdf", Path: "/docs/002_b.pdf", Ordinal: 2},
	}
	s := p.Process(context.Background(), in)

	if len(s.Documents) != 2 {
		t.Fatalf("expected 2 document reports, got %d", len(s.Documents))
	}
	if s.Documents[1].Err == "" {
		t.Fatalf("expected open failure recorded on second document")
	}
	if len(ex.pages) != 2 || ex.pages[0] != 0 || ex.pages[1] != 2 {
		t.Fatalf("extractor called for unexpected pages: %v", ex.pages)
	}
	if len(s.Artifacts) != 1 || s.Artifacts[0].Page != 1 {
		t.Fatalf("expected one artifact from page 1, got %+v", s.Artifacts)
	}
	if s.PagesScanned != 3 || s.PagesMatched != 2 || s.PagesAccepted != 2 {
		t.Fatalf("unexpected page counts: %+v", s)
	}
	if s.Documents[0].Pages[2].Err == "" {
		t.Fatalf("expected table detection error recorded on page 3")
	}
	if !good.closed {
		t.Fatalf("document not closed")
	}
}

func TestProcess_PageTextErrorIsIsolated(t *testing.T) {
	d := &fakeDoc{
		texts:   []string{"", "balance sheet"},
		textErr: map[int]error{0: errors.New("bad font")},
		tables:  map[int][]tables.Table{1: grid()},
	}
	opener := OpenFunc(func(string) (Pages, error) { return d, nil })
	sel := &keywordSelector{}
	p := &Pipeline{
		Opener:    opener,
		Selector:  sel,
		Extractor: &extract.Extractor{Writer: &artifact.Store{Dir: t.TempDir(), Encoder: artifact.CSV{}}},
	}
	s := p.Process(context.Background(), []acquire.Document{{URL: "https://acme.example/x.pdf", Path: "x"}})
	if sel.calls != 1 {
		t.Fatalf("selector should only see the readable page, saw %d", sel.calls)
	}
	if len(s.Artifacts) != 1 || s.Artifacts[0].Page != 2 {
		t.Fatalf("unexpected artifacts: %+v", s.Artifacts)
	}
}

func TestProcess_NoDocuments(t *testing.T) {
	p := &Pipeline{}
	s := p.Process(context.Background(), nil)
	if len(s.Documents) != 0 || len(s.Artifacts) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}
