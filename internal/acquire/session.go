// Package acquire drives document acquisition for one run: it pulls
// candidate URLs lazily, downloads them concurrently, enforces the accepted
// content type and the document cap, hands each stored document to the
// lexical gate and returns by the session deadline with whatever is complete.
package acquire

import (
	"context"
	"errors"
	"iter"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/gate"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
	"github.com/hyperifyio/tablefunnel/internal/search"
)

// Defaults for Config zero values.
const (
	DefaultDocumentCap    = 30
	DefaultSessionTimeout = 60 * time.Second
	DefaultMaxConcurrent  = 4
)

// Source yields candidate results lazily.
type Source interface {
	Candidates(ctx context.Context) iter.Seq2[search.Result, error]
}

// Getter downloads one URL and returns its body and declared content type.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Gate decides whether a stored document is kept. It removes the stored
// bytes of rejected documents.
type Gate interface {
	Evaluate(ctx context.Context, url, path string) gate.Verdict
}

// Document is an acquired document that passed the gate.
type Document struct {
	URL         string  `json:"url"`
	ContentType string  `json:"content_type"`
	Path        string  `json:"path"`
	Ordinal     int     `json:"ordinal"`
	Size        int     `json:"size"`
	SHA256      string  `json:"sha256"`
	Score       float64 `json:"score"`
}

// ID is the stable document identity used to name artifacts.
func (d Document) ID() string { return artifact.DocumentID(d.URL) }

// Skip records a candidate that did not become a document before scoring.
type Skip struct {
	URL  string      `json:"url"`
	Kind faults.Kind `json:"kind"`
	Err  string      `json:"error,omitempty"`
}

// Result is the outcome of one Collect call.
type Result struct {
	// Documents are accepted documents in acquisition order.
	Documents []Document
	// Verdicts holds every gate verdict reached before the deadline, in acquisition order.
	Verdicts []gate.Verdict
	Skipped  []Skip
	// Acquired counts ordinals handed out, whatever the gate decided.
	Acquired int
	TimedOut bool
}

// Config bounds a session.
type Config struct {
	DocumentCap    int
	SessionTimeout time.Duration
	MaxConcurrent  int
	// ContentTypes are the accepted media types; empty means PDF.
	ContentTypes []string
	// Dir receives stored documents.
	Dir string
}

// Session owns all mutable crawl state of a run.
type Session struct {
	Source  Source
	Getter  Getter
	Gate    Gate
	Config  Config
	Metrics *metrics.Funnel
}

type state struct {
	mu       sync.Mutex
	closed   bool
	acquired int
	verdicts map[int]gate.Verdict
	docs     []Document
	skipped  []Skip
}

func (st *state) full(limit int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.acquired >= limit
}

// Collect runs acquisition until the candidates run out or a bound is hit. It
// never returns an error: a timeout is reported through Result.TimedOut and
// work still outstanding at that point is abandoned and its bytes removed.
func (s *Session) Collect(ctx context.Context) Result {
	cfg := s.config()
	ctx, cancel := context.WithTimeout(ctx, cfg.SessionTimeout)
	defer cancel()

	st := &state{verdicts: map[int]gate.Verdict{}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.drive(ctx, cfg, st)
	}()

	timedOut := false
	select {
	case <-done:
	case <-ctx.Done():
		timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	st.mu.Lock()
	st.closed = true
	res := Result{
		Documents: append([]Document(nil), st.docs...),
		Skipped:   append([]Skip(nil), st.skipped...),
		Acquired:  st.acquired,
		TimedOut:  timedOut,
	}
	ordinals := make([]int, 0, len(st.verdicts))
	for o := range st.verdicts {
		ordinals = append(ordinals, o)
	}
	st.mu.Unlock()

	sort.Ints(ordinals)
	for _, o := range ordinals {
		res.Verdicts = append(res.Verdicts, st.verdicts[o])
	}
	sort.Slice(res.Documents, func(i, j int) bool { return res.Documents[i].Ordinal < res.Documents[j].Ordinal })

	if timedOut {
		s.Metrics.SessionTimeout()
		fe := faults.New(faults.SessionTimeout, "acquire", "", ctx.Err())
		log.Warn().Err(fe).Dur("timeout", cfg.SessionTimeout).Int("documents", len(res.Documents)).Msg("acquisition session timed out; continuing with partial results")
	}
	log.Info().Int("acquired", res.Acquired).Int("accepted", len(res.Documents)).Int("skipped", len(res.Skipped)).Bool("timed_out", timedOut).Msg("acquisition finished")
	return res
}

func (s *Session) config() Config {
	cfg := s.Config
	if cfg.DocumentCap <= 0 {
		cfg.DocumentCap = DefaultDocumentCap
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Dir == "" {
		cfg.Dir = "pdfs"
	}
	return cfg
}

func (s *Session) drive(ctx context.Context, cfg Config, st *state) {
	sem := make(chan struct{}, cfg.MaxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	for r, err := range s.Source.Candidates(ctx) {
		if err != nil {
			log.Warn().Err(err).Str("stage", "search").Msg("candidate discovery failed")
			s.Metrics.Fault(string(faults.KindOf(err)), "search")
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if st.full(cfg.DocumentCap) {
			s.budgetExceeded(r.URL, cfg.DocumentCap)
			return
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		// select picks at random when both cases are ready.
		if ctx.Err() != nil {
			<-sem
			return
		}
		if st.full(cfg.DocumentCap) {
			<-sem
			s.budgetExceeded(r.URL, cfg.DocumentCap)
			return
		}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.acquire(ctx, cfg, st, url)
		}(r.URL)
	}
}

func (s *Session) budgetExceeded(url string, limit int) {
	s.Metrics.Candidate(metrics.CandidateBudgetExceeded)
	log.Info().Str("url", url).Int("cap", limit).Str("kind", string(faults.BudgetExceeded)).Msg("document cap reached; no further candidates fetched")
}

func (s *Session) acquire(ctx context.Context, cfg Config, st *state, url string) {
	body, ct, err := s.Getter.Get(ctx, url)
	if err != nil {
		kind := faults.KindOf(err)
		if kind == "" {
			kind = faults.FetchError
			err = faults.New(kind, "fetch", url, err)
		}
		outcome := metrics.CandidateFetchError
		if kind == faults.UnsupportedContentType {
			outcome = metrics.CandidateContentType
		}
		s.skip(ctx, st, url, kind, err, outcome)
		return
	}

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		s.Metrics.Candidate(metrics.CandidateLate)
		return
	}
	decision := Classify(ct, cfg.ContentTypes, st.acquired, cfg.DocumentCap)
	ordinal := 0
	if decision == Take {
		st.acquired++
		ordinal = st.acquired
	}
	st.mu.Unlock()

	switch decision {
	case SkipContentType:
		fe := faults.New(faults.UnsupportedContentType, "acquire", url, errors.New("content type "+ct))
		s.skip(ctx, st, url, faults.UnsupportedContentType, fe, metrics.CandidateContentType)
		return
	case SkipBudget:
		s.Metrics.Candidate(metrics.CandidateBudgetExceeded)
		log.Debug().Str("url", url).Msg("fetched past the document cap; discarded")
		return
	}
	s.Metrics.Candidate(metrics.CandidateFetched)

	path, sum, err := store(cfg.Dir, StoredName(ordinal, url), body)
	if err != nil {
		s.skip(ctx, st, url, faults.FetchError, faults.New(faults.FetchError, "store", url, err), "")
		return
	}
	v := s.Gate.Evaluate(ctx, url, path)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		s.Metrics.Candidate(metrics.CandidateLate)
		if v.Accepted {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", path).Msg("remove late document")
			}
		}
		log.Debug().Str("url", url).Msg("document completed after session deadline; discarded")
		return
	}
	st.verdicts[ordinal] = v
	if v.Accepted {
		st.docs = append(st.docs, Document{
			URL:         url,
			ContentType: ct,
			Path:        path,
			Ordinal:     ordinal,
			Size:        len(body),
			SHA256:      sum,
			Score:       v.Score,
		})
	}
}

// skip records a dropped candidate. Failures after the session ended are
// counted as late and not reported.
func (s *Session) skip(ctx context.Context, st *state, url string, kind faults.Kind, err error, outcome string) {
	st.mu.Lock()
	if st.closed || ctx.Err() != nil {
		st.mu.Unlock()
		s.Metrics.Candidate(metrics.CandidateLate)
		log.Debug().Err(err).Str("url", url).Msg("candidate abandoned at session end")
		return
	}
	st.skipped = append(st.skipped, Skip{URL: url, Kind: kind, Err: err.Error()})
	st.mu.Unlock()

	log.Warn().Err(err).Str("url", url).Str("kind", string(kind)).Msg("candidate dropped")
	if outcome != "" {
		s.Metrics.Candidate(outcome)
	}
	s.Metrics.Fault(string(kind), "acquire")
}
