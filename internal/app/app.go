package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/acquire"
	"github.com/hyperifyio/tablefunnel/internal/aggregate"
	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/cache"
	"github.com/hyperifyio/tablefunnel/internal/embed"
	"github.com/hyperifyio/tablefunnel/internal/extract"
	"github.com/hyperifyio/tablefunnel/internal/fetch"
	"github.com/hyperifyio/tablefunnel/internal/gate"
	"github.com/hyperifyio/tablefunnel/internal/index"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
	"github.com/hyperifyio/tablefunnel/internal/pages"
	"github.com/hyperifyio/tablefunnel/internal/pdf"
	"github.com/hyperifyio/tablefunnel/internal/pipeline"
	"github.com/hyperifyio/tablefunnel/internal/relevance"
	"github.com/hyperifyio/tablefunnel/internal/robots"
	"github.com/hyperifyio/tablefunnel/internal/search"
	"github.com/hyperifyio/tablefunnel/internal/tables"
)

// Cache size limits applied at startup.
const (
	cacheMaxBytes = 2 << 30
	cacheMaxFiles = 20000
)

type App struct {
	cfg       Config
	metrics   *metrics.Funnel
	embed     *embed.Service
	httpCache *cache.HTTPCache
	index     *index.DB
}

// ErrNoRelevantDocuments is returned when acquisition ends without a single
// document passing the lexical gate. The CLI maps it to a non-zero exit.
var ErrNoRelevantDocuments = errors.New("no relevant documents")

// New validates cfg and prepares the shared services of a run.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, metrics: metrics.New()}

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cfg.CacheDir, "http")
		embDir := filepath.Join(cfg.CacheDir, "embeddings")
		if cfg.CacheMaxAge > 0 {
			n, _ := cache.PurgeHTTPCacheByAge(httpDir, cfg.CacheMaxAge)
			m, _ := cache.PurgeEmbeddingCacheByAge(embDir, cfg.CacheMaxAge)
			log.Debug().Int("http", n).Int("embeddings", m).Msg("cache purged by age")
		}
		_, _ = cache.EnforceHTTPCacheLimits(httpDir, cacheMaxBytes, cacheMaxFiles)
		_, _ = cache.EnforceEmbeddingCacheLimits(embDir, cacheMaxBytes, cacheMaxFiles)
		a.httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms}
	}

	if cfg.DryRun {
		return a, nil
	}

	embCache := ""
	if cfg.CacheDir != "" {
		embCache = filepath.Join(cfg.CacheDir, "embeddings")
	}
	svc, err := embed.NewService(embed.Config{
		Provider:    cfg.EmbedProvider,
		BaseURL:     cfg.EmbedBaseURL,
		Model:       cfg.EmbedModel,
		APIKey:      cfg.EmbedAPIKey,
		Dimensions:  cfg.EmbedDimensions,
		HTTPClient:  newHTTPClient(30 * time.Second),
		CacheDir:    embCache,
		StrictPerms: cfg.CacheStrictPerms,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	a.embed = svc

	// Reachability is best-effort; embedding failures later fail pages closed.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("model", svc.Model()).Msg("embedding backend unreachable; continuing")
	}

	if p := strings.TrimSpace(cfg.IndexPath); p != "" {
		db, err := index.Open(p)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		a.index = db
	}
	return a, nil
}

func (a *App) Close() {
	if a.embed != nil {
		_ = a.embed.Close()
	}
	if a.index != nil {
		_ = a.index.Close()
	}
}

func (a *App) provider() search.Provider {
	client := newHTTPClient(20 * time.Second)
	switch {
	case a.cfg.FileSearchPath != "":
		return &search.FileProvider{Path: a.cfg.FileSearchPath}
	case a.cfg.SearchHTMLURL != "":
		return &search.HTMLProvider{BaseURL: a.cfg.SearchHTMLURL, HTTPClient: client, UserAgent: a.cfg.UserAgent}
	default:
		return &search.SearxNG{BaseURL: a.cfg.SearxURL, APIKey: a.cfg.SearxKey, HTTPClient: client, UserAgent: a.cfg.UserAgent}
	}
}

// Run executes the funnel once: search, acquisition with the lexical gate,
// page selection and table extraction, then the run report.
func (a *App) Run(ctx context.Context) error {
	run := newRun(a.cfg, time.Now())
	if err := os.MkdirAll(run.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	queryText := search.BuildQuery(a.cfg.SearchTemplate, run.Entity)
	crawler := &aggregate.Crawler{
		Provider: a.provider(),
		Config:   search.CrawlConfig{Query: queryText, PageBudget: a.cfg.CrawlPageBudget},
	}
	log.Info().Str("run", run.ID).Str("entity", run.Entity).Str("query", queryText).Str("dir", run.Dir).Msg("run started")

	m := runManifest{Meta: a.meta(run, queryText)}

	if a.cfg.DryRun {
		m.Keywords = a.cfg.Keywords
		for r, err := range crawler.Candidates(ctx) {
			if err != nil {
				log.Warn().Err(err).Msg("search failed")
				break
			}
			m.Candidates = append(m.Candidates, r.URL)
			if len(m.Candidates) >= a.cfg.DocumentCap {
				break
			}
		}
		return a.finish(run, m)
	}

	q, err := relevance.Build(ctx, a.embed, run.Entity, a.cfg.Keywords, a.cfg.Descriptor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	m.Keywords = q.Keywords()

	reader := pdf.Extractor{Detector: tables.DefaultDetector}
	gk := &gate.Gatekeeper{
		Text:      reader,
		Keywords:  q.Keywords(),
		Threshold: a.cfg.LexicalThreshold,
		Metrics:   a.metrics,
	}
	fetcher := &fetch.Client{
		HTTPClient:        newHTTPClient(0),
		UserAgent:         a.cfg.UserAgent,
		MaxAttempts:       2,
		PerRequestTimeout: 30 * time.Second,
		Cache:             a.httpCache,
		BypassCache:       a.cfg.CacheClear,
		MaxConcurrent:     a.cfg.FetchConcurrency,
		RequestsPerSecond: a.cfg.FetchRPS,
	}
	if a.cfg.RespectRobots {
		fetcher.Robots = &robots.Manager{
			HTTPClient: newHTTPClient(10 * time.Second),
			Cache:      a.httpCache,
			UserAgent:  a.cfg.UserAgent,
		}
	}
	session := &acquire.Session{
		Source: crawler,
		Getter: fetcher,
		Gate:   gk,
		Config: acquire.Config{
			DocumentCap:    a.cfg.DocumentCap,
			SessionTimeout: a.cfg.SessionTimeout,
			MaxConcurrent:  a.cfg.FetchConcurrency,
			Dir:            run.DocsDir,
		},
		Metrics: a.metrics,
	}
	acquired := session.Collect(ctx)
	m.Meta.Acquired = acquired.Acquired
	m.Meta.TimedOut = acquired.TimedOut
	m.Skipped = acquired.Skipped
	m.Verdicts = acquired.Verdicts
	if a.index != nil {
		if err := a.index.StartRun(index.Run{ID: run.ID, Entity: run.Entity, StartedAt: run.StartedAt}); err != nil {
			log.Warn().Err(err).Msg("index start failed")
		}
	}

	if len(acquired.Documents) == 0 {
		log.Warn().Int("acquired", acquired.Acquired).Bool("timed_out", acquired.TimedOut).Msg("no document passed the lexical gate")
		a.indexFinish(run, 0, acquired.TimedOut)
		if err := a.finish(run, m); err != nil {
			return err
		}
		return ErrNoRelevantDocuments
	}

	enc, err := artifact.EncoderFor(a.cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p := &pipeline.Pipeline{
		Opener: pipeline.OpenFunc(func(path string) (pipeline.Pages, error) {
			doc, err := reader.Open(path)
			if err != nil {
				return nil, err
			}
			return doc, nil
		}),
		Selector: &pages.Selector{
			Query:          q,
			Embedder:       a.embed,
			Threshold:      a.cfg.SemanticThreshold,
			MaxInputTokens: a.embed.MaxInputTokens(),
			Metrics:        a.metrics,
		},
		Extractor: &extract.Extractor{
			Writer:  &artifact.Store{Dir: run.Dir, Encoder: enc},
			Metrics: a.metrics,
		},
		Workers: a.cfg.Workers,
		Metrics: a.metrics,
	}
	summary := p.Process(ctx, acquired.Documents)
	m.Documents = summary.Documents
	m.Artifacts = summary.Artifacts
	log.Info().
		Int("documents", len(summary.Documents)).
		Int("pages_scanned", summary.PagesScanned).
		Int("pages_accepted", summary.PagesAccepted).
		Int("artifacts", len(summary.Artifacts)).
		Msg("extraction finished")

	if a.index != nil {
		sources := map[string]string{}
		for _, d := range summary.Documents {
			sources[d.DocumentID] = d.Document.URL
		}
		for _, art := range summary.Artifacts {
			if err := a.index.Add(run.ID, sources[art.DocumentID], art); err != nil {
				log.Warn().Err(err).Str("path", art.Path).Msg("index add failed")
			}
		}
	}
	a.indexFinish(run, len(acquired.Documents), acquired.TimedOut)
	return a.finish(run, m)
}

func (a *App) indexFinish(run Run, documents int, timedOut bool) {
	if a.index == nil {
		return
	}
	if err := a.index.FinishRun(run.ID, time.Now().UTC(), documents, timedOut); err != nil {
		log.Warn().Err(err).Msg("index finish failed")
	}
}

func (a *App) meta(run Run, queryText string) manifestMeta {
	m := manifestMeta{
		RunID:             run.ID,
		Entity:            run.Entity,
		Query:             queryText,
		Version:           BuildVersion,
		Commit:            BuildCommit,
		EmbedProvider:     a.cfg.EmbedProvider,
		EmbedModel:        a.cfg.EmbedModel,
		EmbedBaseURL:      a.cfg.EmbedBaseURL,
		LexicalThreshold:  a.cfg.LexicalThreshold,
		SemanticThreshold: a.cfg.SemanticThreshold,
		DocumentCap:       a.cfg.DocumentCap,
		SessionTimeout:    a.cfg.SessionTimeout.String(),
		HTTPCache:         a.httpCache != nil,
		DryRun:            a.cfg.DryRun,
		StartedAt:         run.StartedAt,
	}
	if a.embed != nil {
		m.EmbedModel = a.embed.Model()
	}
	return m
}

// finish writes the manifest, the Markdown report (and its PDF rendering when
// requested), checksums and the metrics textfile.
func (a *App) finish(run Run, m runManifest) error {
	m.Meta.GeneratedAt = time.Now().UTC()
	if err := writeJSON(run.manifestPath(), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	md := appendReproFooter(renderReport(m), m.Meta, len(m.Verdicts), len(m.Artifacts))
	reportPath := run.reportPath(a.cfg)
	if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
		return fmt.Errorf("mkdir report: %w", err)
	}
	if err := os.WriteFile(reportPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if p := strings.TrimSpace(a.cfg.ReportPDFPath); p != "" {
		if err := writeReportPDF(md, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("report pdf failed")
		}
	}
	if err := sealRunDir(run.Dir, a.cfg.ReportsTar); err != nil {
		log.Warn().Err(err).Str("dir", run.Dir).Msg("sealing run dir failed")
	}
	if p := strings.TrimSpace(a.cfg.MetricsFile); p != "" {
		if err := a.metrics.WriteTextfile(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("metrics textfile failed")
		}
	}
	log.Info().Str("report", reportPath).Int("artifacts", len(m.Artifacts)).Msg("run finished")
	return nil
}
