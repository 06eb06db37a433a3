package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hyperifyio/tablefunnel/internal/relevance"
	"github.com/hyperifyio/tablefunnel/internal/search"
)

// Defaults shared by flags, file config and DefaultConfig.
const (
	DefaultOutputDir         = "extracted_statements"
	DefaultOutputFormat      = "xlsx"
	DefaultDocsDir           = "pdfs"
	DefaultDocumentCap       = 30
	DefaultLexicalThreshold  = 0.3
	DefaultSemanticThreshold = 0.7
	DefaultCrawlPageBudget   = 10
	DefaultSessionTimeout    = 60 * time.Second
	DefaultEmbedProvider     = "openai"
	DefaultCacheDir          = ".tablefunnel-cache"
	DefaultWorkers           = 4
	DefaultFetchConcurrency  = 4
	DefaultFetchRPS          = 2
	DefaultUserAgent         = "tablefunnel/1.0 (+https://github.com/hyperifyio/tablefunnel)"
)

// ErrInvalidConfig wraps every configuration error. These are the only
// run-fatal errors and are detected before any document is fetched.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime configuration for the application.
type Config struct {
	Entity     string
	Keywords   []string
	Descriptor string

	// Output
	OutputDir     string `validate:"required"`
	OutputFormat  string `validate:"oneof=xlsx csv"`
	ReportPath    string
	ReportPDFPath string
	ReportsTar    bool
	IndexPath     string
	MetricsFile   string

	// Acquisition
	DocsDir          string        `validate:"required"`
	DocumentCap      int           `validate:"min=1"`
	CrawlPageBudget  int           `validate:"min=1"`
	SessionTimeout   time.Duration `validate:"gt=0"`
	FetchConcurrency int           `validate:"min=1"`
	FetchRPS         float64       `validate:"gte=0"`
	UserAgent        string
	RespectRobots    bool

	// Relevance
	LexicalThreshold  float64 `validate:"gte=0"`
	SemanticThreshold float64 `validate:"gte=-1,lte=1"`

	// Search
	SearchTemplate string
	SearxURL       string `validate:"omitempty,url"`
	SearxKey       string
	SearchHTMLURL  string `validate:"omitempty,url"`
	FileSearchPath string

	// Embeddings
	EmbedProvider   string `validate:"oneof=openai hash"`
	EmbedBaseURL    string `validate:"omitempty,url"`
	EmbedModel      string
	EmbedAPIKey     string
	EmbedDimensions int `validate:"gte=0"`

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	Workers int `validate:"min=1"`

	// Behavior
	DryRun  bool
	Verbose bool
	LogFile string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Keywords:          append([]string(nil), relevance.DefaultKeywords...),
		Descriptor:        relevance.DefaultDescriptor,
		OutputDir:         DefaultOutputDir,
		OutputFormat:      DefaultOutputFormat,
		DocsDir:           DefaultDocsDir,
		DocumentCap:       DefaultDocumentCap,
		CrawlPageBudget:   DefaultCrawlPageBudget,
		SessionTimeout:    DefaultSessionTimeout,
		FetchConcurrency:  DefaultFetchConcurrency,
		FetchRPS:          DefaultFetchRPS,
		UserAgent:         DefaultUserAgent,
		RespectRobots:     true,
		LexicalThreshold:  DefaultLexicalThreshold,
		SemanticThreshold: DefaultSemanticThreshold,
		SearchTemplate:    search.DefaultQueryTemplate,
		EmbedProvider:     DefaultEmbedProvider,
		CacheDir:          DefaultCacheDir,
		Workers:           DefaultWorkers,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks struct constraints and the cross-field rules. Every
// error returned wraps ErrInvalidConfig.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Entity) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, relevance.ErrEmptyEntity)
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.SearxURL == "" && cfg.SearchHTMLURL == "" && cfg.FileSearchPath == "" {
		return fmt.Errorf("%w: no search provider (set searx.url, search.html or search.file)", ErrInvalidConfig)
	}
	if !cfg.DryRun && cfg.EmbedProvider == "openai" && strings.TrimSpace(cfg.EmbedModel) == "" {
		return fmt.Errorf("%w: embedding.model is required for the openai provider (or set EMBED_MODEL)", ErrInvalidConfig)
	}
	if len(cfg.Keywords) == 0 {
		return fmt.Errorf("%w: keyword list is empty", ErrInvalidConfig)
	}
	return nil
}
