package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/tablefunnel/internal/textutil"
)

// ApplyEnvOverrides overrides cfg fields with environment variables when the
// corresponding env vars are set. It runs after the config file is applied
// and before flags are parsed, so env beats file and flags beat env.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
			}
		}
	}
	setInt := func(dst *int, key string) {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
			*dst = n
		}
	}
	setFloat := func(dst *float64, key string) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
			*dst = f
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
			*dst = d
		}
	}
	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setString(&cfg.Entity, "ENTITY")
	if kw := textutil.SplitList(os.Getenv("KEYWORDS")); len(kw) > 0 {
		cfg.Keywords = kw
	}
	setString(&cfg.Descriptor, "DESCRIPTOR")

	setString(&cfg.OutputDir, "OUTPUT_DIR")
	setString(&cfg.OutputFormat, "OUTPUT_FORMAT")
	setString(&cfg.ReportPath, "REPORT_PATH")
	setString(&cfg.ReportPDFPath, "REPORT_PDF_PATH")
	setString(&cfg.IndexPath, "INDEX_DB")
	setString(&cfg.MetricsFile, "METRICS_FILE")

	setString(&cfg.DocsDir, "DOCS_DIR")
	setInt(&cfg.DocumentCap, "DOCUMENT_CAP")
	setInt(&cfg.CrawlPageBudget, "CRAWL_PAGE_BUDGET")
	setDuration(&cfg.SessionTimeout, "SESSION_TIMEOUT")
	setInt(&cfg.FetchConcurrency, "FETCH_CONCURRENCY")
	setFloat(&cfg.FetchRPS, "FETCH_RPS")
	setString(&cfg.UserAgent, "USER_AGENT")
	setBool(&cfg.RespectRobots, "RESPECT_ROBOTS")

	setFloat(&cfg.LexicalThreshold, "LEXICAL_THRESHOLD")
	setFloat(&cfg.SemanticThreshold, "SEMANTIC_THRESHOLD")

	setString(&cfg.SearchTemplate, "SEARCH_TEMPLATE")
	// SEARXNG_* are accepted as aliases; SEARX_* wins when both are set
	setString(&cfg.SearxURL, "SEARXNG_URL", "SEARX_URL")
	setString(&cfg.SearxKey, "SEARXNG_KEY", "SEARX_KEY")
	setString(&cfg.SearchHTMLURL, "SEARCH_HTML_URL")
	setString(&cfg.FileSearchPath, "SEARCH_FILE")

	setString(&cfg.EmbedProvider, "EMBED_PROVIDER")
	setString(&cfg.EmbedBaseURL, "EMBED_BASE_URL")
	setString(&cfg.EmbedModel, "EMBED_MODEL")
	setString(&cfg.EmbedAPIKey, "EMBED_API_KEY")
	setInt(&cfg.EmbedDimensions, "EMBED_DIMENSIONS")

	setString(&cfg.CacheDir, "CACHE_DIR")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")

	setInt(&cfg.Workers, "WORKERS")
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setString(&cfg.LogFile, "LOG_FILE")
}
