package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hyperifyio/tablefunnel/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("dotenv load failed")
	}

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration errors and runs that found nothing
// relevant, 1 for a run that failed before its report was written.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrInvalidConfig) || errors.Is(err, app.ErrNoRelevantDocuments):
		return 2
	default:
		return 1
	}
}

func setupLogging(cfg app.Config) {
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if p := strings.TrimSpace(cfg.LogFile); p != "" {
		file := &lumberjack.Logger{Filename: p, MaxSize: 50, MaxBackups: 3, MaxAge: 28}
		out = zerolog.MultiLevelWriter(out, file)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// loadConfig layers defaults, the optional config file, the environment and
// finally command-line flags.
func loadConfig(args []string) (app.Config, error) {
	cfg := app.DefaultConfig()
	if p := configPath(args); p != "" {
		fc, err := app.LoadConfigFile(p)
		if err != nil {
			return cfg, fmt.Errorf("%w: config file: %v", app.ErrInvalidConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	fs := flag.NewFlagSet("tablefunnel", flag.ContinueOnError)
	var (
		configFile string
		keywords   string
	)
	fs.StringVar(&configFile, "config", os.Getenv("TABLEFUNNEL_CONFIG"), "Path to a YAML, JSON or TOML config file")
	fs.StringVar(&cfg.Entity, "entity", cfg.Entity, "Organisation whose statements to extract (required)")
	fs.StringVar(&keywords, "keywords", strings.Join(cfg.Keywords, ","), "Comma-separated statement keywords")
	fs.StringVar(&cfg.Descriptor, "descriptor", cfg.Descriptor, "Description of a relevant page, embedded once per run")
	fs.StringVar(&cfg.OutputDir, "out.dir", cfg.OutputDir, "Directory for run outputs")
	fs.StringVar(&cfg.OutputFormat, "out.format", cfg.OutputFormat, "Table artifact format: xlsx or csv")
	fs.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "Markdown report path (default: report.md in the run dir)")
	fs.StringVar(&cfg.ReportPDFPath, "report.pdf", cfg.ReportPDFPath, "Also render the report to this PDF path")
	fs.BoolVar(&cfg.ReportsTar, "report.tar", cfg.ReportsTar, "Write a tar.gz of the run directory")
	fs.StringVar(&cfg.IndexPath, "index.db", cfg.IndexPath, "SQLite artifact index path (empty disables)")
	fs.StringVar(&cfg.MetricsFile, "metrics.file", cfg.MetricsFile, "Write funnel metrics in Prometheus text format")
	fs.StringVar(&cfg.DocsDir, "docs.dir", cfg.DocsDir, "Directory for downloaded documents")
	fs.IntVar(&cfg.DocumentCap, "docs.cap", cfg.DocumentCap, "Maximum documents acquired per run")
	fs.IntVar(&cfg.CrawlPageBudget, "crawl.pages", cfg.CrawlPageBudget, "Maximum search result pages to walk")
	fs.DurationVar(&cfg.SessionTimeout, "session.timeout", cfg.SessionTimeout, "Acquisition session wall-clock limit")
	fs.IntVar(&cfg.FetchConcurrency, "fetch.concurrency", cfg.FetchConcurrency, "Concurrent downloads")
	fs.Float64Var(&cfg.FetchRPS, "fetch.rps", cfg.FetchRPS, "Download requests per second (0 disables pacing)")
	fs.StringVar(&cfg.UserAgent, "fetch.ua", cfg.UserAgent, "User-Agent for search and downloads")
	fs.BoolVar(&cfg.RespectRobots, "fetch.robots", cfg.RespectRobots, "Skip documents disallowed by robots.txt")
	fs.Float64Var(&cfg.LexicalThreshold, "lexical.threshold", cfg.LexicalThreshold, "BM25 score a document must exceed")
	fs.Float64Var(&cfg.SemanticThreshold, "semantic.threshold", cfg.SemanticThreshold, "Cosine similarity a page must reach")
	fs.StringVar(&cfg.SearchTemplate, "search.template", cfg.SearchTemplate, "Query template; {entity} is replaced")
	fs.StringVar(&cfg.SearxURL, "searx.url", cfg.SearxURL, "SearxNG base URL")
	fs.StringVar(&cfg.SearxKey, "searx.key", cfg.SearxKey, "SearxNG API key (optional)")
	fs.StringVar(&cfg.SearchHTMLURL, "search.html", cfg.SearchHTMLURL, "HTML results endpoint to scrape")
	fs.StringVar(&cfg.FileSearchPath, "search.file", cfg.FileSearchPath, "JSON file of results for offline runs")
	fs.StringVar(&cfg.EmbedProvider, "embed.provider", cfg.EmbedProvider, "Embedding backend: openai or hash")
	fs.StringVar(&cfg.EmbedBaseURL, "embed.base", cfg.EmbedBaseURL, "OpenAI-compatible base URL")
	fs.StringVar(&cfg.EmbedModel, "embed.model", cfg.EmbedModel, "Embedding model name")
	fs.StringVar(&cfg.EmbedAPIKey, "embed.key", cfg.EmbedAPIKey, "Embedding API key")
	fs.IntVar(&cfg.EmbedDimensions, "embed.dimensions", cfg.EmbedDimensions, "Requested vector size (0 = model default)")
	fs.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "Cache directory path")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", cfg.CacheMaxAge, "Purge cache entries older than this; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", cfg.CacheClear, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", cfg.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Documents processed concurrently after acquisition")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "List candidates without downloading")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFile, "log.file", cfg.LogFile, "Also write JSON logs to this rotating file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.Keywords = splitList(keywords)
	return cfg, nil
}

// configPath finds -config before flag parsing so file values can serve as
// flag defaults.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("TABLEFUNNEL_CONFIG")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
