package acquire

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/gate"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
	"github.com/hyperifyio/tablefunnel/internal/search"
)

type sliceSource []string

func (s sliceSource) Candidates(ctx context.Context) iter.Seq2[search.Result, error] {
	return func(yield func(search.Result, error) bool) {
		for _, u := range s {
			if ctx.Err() != nil {
				return
			}
			if !yield(search.Result{URL: u}, nil) {
				return
			}
		}
	}
}

type response struct {
	ct    string
	delay time.Duration
	err   error
}

type fakeGetter struct {
	responses map[string]response
	calls     int32
}

func (g *fakeGetter) Get(ctx context.Context, url string) ([]byte, string, error) {
	atomic.AddInt32(&g.calls, 1)
	r, ok := g.responses[url]
	if !ok {
		r = response{ct: "application/pdf"}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if r.err != nil {
		return nil, "", r.err
	}
	return []byte("%PDF-1.4 " + url), r.ct, nil
}

type fakeGate struct {
	mu     sync.Mutex
	seen   []string
	reject map[string]bool
	delay  time.Duration
}

func (g *fakeGate) Evaluate(_ context.Context, url, path string) gate.Verdict {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	g.seen = append(g.seen, url)
	g.mu.Unlock()
	if g.reject[url] {
		_ = os.Remove(path)
		return gate.Verdict{URL: url, Path: path, Reason: gate.ReasonBelowThreshold}
	}
	return gate.Verdict{URL: url, Path: path, Score: 1, Accepted: true, Reason: gate.ReasonAccepted}
}

func (g *fakeGate) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://acme.example/reports/r%d.pdf", i+1)
	}
	return out
}

func TestCollect_NonPDFDroppedBeforeGate(t *testing.T) {
	cands := urls(5)
	getter := &fakeGetter{responses: map[string]response{
		cands[1]: {ct: "text/html; charset=utf-8"},
		cands[3]: {ct: "image/png"},
	}}
	g := &fakeGate{}
	m := metrics.New()
	s := &Session{
		Source:  sliceSource(cands),
		Getter:  getter,
		Gate:    g,
		Config:  Config{DocumentCap: 30, SessionTimeout: 5 * time.Second, MaxConcurrent: 2, Dir: t.TempDir()},
		Metrics: m,
	}
	res := s.Collect(context.Background())
	if n := g.calls(); n != 3 {
		t.Fatalf("expected exactly 3 gate calls, got %d", n)
	}
	if len(res.Documents) != 3 || res.Acquired != 3 {
		t.Fatalf("expected 3 documents, got %d (acquired %d)", len(res.Documents), res.Acquired)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped candidates, got %+v", res.Skipped)
	}
	for _, sk := range res.Skipped {
		if sk.Kind != faults.UnsupportedContentType {
			t.Fatalf("unexpected skip kind %q", sk.Kind)
		}
	}
	if got := testutil.ToFloat64(m.Candidates.WithLabelValues(metrics.CandidateContentType)); got != 2 {
		t.Fatalf("expected 2 content type rejections in metrics, got %v", got)
	}
	if res.TimedOut {
		t.Fatalf("did not expect a timeout")
	}
}

func TestCollect_TimeoutReturnsPartialResults(t *testing.T) {
	cands := urls(4)
	getter := &fakeGetter{responses: map[string]response{
		cands[2]: {ct: "application/pdf", delay: 10 * time.Second},
		cands[3]: {ct: "application/pdf", delay: 10 * time.Second},
	}}
	g := &fakeGate{}
	s := &Session{
		Source: sliceSource(cands),
		Getter: getter,
		Gate:   g,
		Config: Config{DocumentCap: 30, SessionTimeout: 300 * time.Millisecond, MaxConcurrent: 4, Dir: t.TempDir()},
	}
	start := time.Now()
	res := s.Collect(context.Background())
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("collect overran its deadline: %v", elapsed)
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut")
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected the 2 fast documents, got %+v", res.Documents)
	}
	for _, d := range res.Documents {
		if d.URL != cands[0] && d.URL != cands[1] {
			t.Fatalf("unexpected document %s", d.URL)
		}
		if _, err := os.Stat(d.Path); err != nil {
			t.Fatalf("accepted document missing on disk: %v", err)
		}
	}
}

func TestCollect_LateDocumentsAreDiscarded(t *testing.T) {
	dir := t.TempDir()
	g := &fakeGate{delay: 600 * time.Millisecond}
	s := &Session{
		Source: sliceSource(urls(1)),
		Getter: &fakeGetter{},
		Gate:   g,
		Config: Config{SessionTimeout: 100 * time.Millisecond, Dir: dir},
	}
	res := s.Collect(context.Background())
	if !res.TimedOut || len(res.Documents) != 0 {
		t.Fatalf("expected an empty timed out result, got %+v", res)
	}
	deadline := time.Now().Add(3 * time.Second)
	for g.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	// the late worker removes its bytes right after the gate returns
	time.Sleep(100 * time.Millisecond)
	left, _ := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if len(left) != 0 {
		t.Fatalf("late document bytes not removed: %v", left)
	}
}

func TestCollect_NothingLaunchedOrReportedAfterDeadline(t *testing.T) {
	cands := urls(6)
	getter := &fakeGetter{responses: map[string]response{
		cands[0]: {ct: "application/pdf", delay: 10 * time.Second},
	}}
	m := metrics.New()
	s := &Session{
		Source:  sliceSource(cands),
		Getter:  getter,
		Gate:    &fakeGate{},
		Config:  Config{DocumentCap: 30, SessionTimeout: 150 * time.Millisecond, MaxConcurrent: 1, Dir: t.TempDir()},
		Metrics: m,
	}
	res := s.Collect(context.Background())
	if !res.TimedOut || len(res.Skipped) != 0 {
		t.Fatalf("expected a timed out result without skips, got %+v", res)
	}
	// let the abandoned worker and the candidate loop wind down
	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&getter.calls); n != 1 {
		t.Fatalf("getter called %d times, want only the in-flight candidate", n)
	}
	if got := testutil.ToFloat64(m.Faults.WithLabelValues(string(faults.FetchError), "acquire")); got != 0 {
		t.Fatalf("fault reported after the deadline: %v", got)
	}
	if got := testutil.ToFloat64(m.Candidates.WithLabelValues(metrics.CandidateLate)); got != 1 {
		t.Fatalf("late candidates = %v, want 1", got)
	}
}

func TestCollect_CapKeepsFirstInAcquisitionOrder(t *testing.T) {
	cands := urls(5)
	getter := &fakeGetter{}
	s := &Session{
		Source: sliceSource(cands),
		Getter: getter,
		Gate:   &fakeGate{},
		Config: Config{DocumentCap: 2, SessionTimeout: 5 * time.Second, MaxConcurrent: 1, Dir: t.TempDir()},
	}
	res := s.Collect(context.Background())
	if len(res.Documents) != 2 {
		t.Fatalf("expected exactly 2 documents, got %d", len(res.Documents))
	}
	for i, d := range res.Documents {
		if d.URL != cands[i] || d.Ordinal != i+1 {
			t.Fatalf("document %d: got %s ordinal %d", i, d.URL, d.Ordinal)
		}
		if filepath.Base(d.Path) != StoredName(i+1, cands[i]) {
			t.Fatalf("unexpected stored name %s", d.Path)
		}
	}
	if n := atomic.LoadInt32(&getter.calls); n != 2 {
		t.Fatalf("no candidate should be fetched past the cap, got %d fetches", n)
	}
}

func TestCollect_CapNeverExceededUnderConcurrency(t *testing.T) {
	s := &Session{
		Source: sliceSource(urls(25)),
		Getter: &fakeGetter{},
		Gate:   &fakeGate{},
		Config: Config{DocumentCap: 3, SessionTimeout: 5 * time.Second, MaxConcurrent: 8, Dir: t.TempDir()},
	}
	res := s.Collect(context.Background())
	if res.Acquired != 3 || len(res.Documents) != 3 {
		t.Fatalf("cap exceeded: acquired=%d docs=%d", res.Acquired, len(res.Documents))
	}
	for i, d := range res.Documents {
		if d.Ordinal != i+1 {
			t.Fatalf("documents not in acquisition order: %+v", res.Documents)
		}
	}
}

func TestCollect_CapCountsRejectedDocuments(t *testing.T) {
	cands := urls(4)
	g := &fakeGate{reject: map[string]bool{cands[0]: true}}
	s := &Session{
		Source: sliceSource(cands),
		Getter: &fakeGetter{},
		Gate:   g,
		Config: Config{DocumentCap: 2, MaxConcurrent: 1, Dir: t.TempDir()},
	}
	res := s.Collect(context.Background())
	if res.Acquired != 2 || len(res.Documents) != 1 || len(res.Verdicts) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Documents[0].URL != cands[1] {
		t.Fatalf("unexpected accepted document %s", res.Documents[0].URL)
	}
}

func TestCollect_FetchErrorsAreIsolated(t *testing.T) {
	cands := urls(3)
	getter := &fakeGetter{responses: map[string]response{
		cands[0]: {err: errors.New("connection reset")},
	}}
	s := &Session{
		Source: sliceSource(cands),
		Getter: getter,
		Gate:   &fakeGate{},
		Config: Config{Dir: t.TempDir()},
	}
	res := s.Collect(context.Background())
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(res.Documents))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Kind != faults.FetchError {
		t.Fatalf("expected one fetch error skip, got %+v", res.Skipped)
	}
}
