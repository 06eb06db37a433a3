// Package embed turns text into dense vectors. The Service is constructed
// once per run and shared read-only by the relevance query and the page
// selector.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hyperifyio/tablefunnel/internal/budget"
	"github.com/hyperifyio/tablefunnel/internal/cache"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
)

// Embedder maps text to a vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider names accepted by NewService.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Config selects and tunes the embedding backend.
type Config struct {
	Provider   string
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
	HTTPClient *http.Client

	// CacheDir enables the on-disk vector cache when non-empty.
	CacheDir    string
	StrictPerms bool
	// MemoryTTL bounds the in-process cache; zero uses a default.
	MemoryTTL time.Duration

	Metrics *metrics.Funnel
}

// Service owns the embedding backend for the lifetime of a run.
type Service struct {
	inner  Embedder
	cached *Cached
	model  string
	ping   func(ctx context.Context) error
}

// NewService builds the configured backend wrapped in the cache layers.
func NewService(cfg Config) (*Service, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	s := &Service{model: cfg.Model}
	switch provider {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, errors.New("embed: model is required for the openai provider")
		}
		oa := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			HTTPClient: cfg.HTTPClient,
			Metrics:    cfg.Metrics,
		})
		s.inner = oa
		s.ping = oa.HealthCheck
	case ProviderHash:
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = DefaultHashDimensions
		}
		s.inner = &HashingEmbedder{Dimensions: dims}
		if s.model == "" {
			s.model = fmt.Sprintf("hash-%d", dims)
		}
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	var disk *cache.EmbeddingCache
	if cfg.CacheDir != "" {
		disk = &cache.EmbeddingCache{Dir: cfg.CacheDir, StrictPerms: cfg.StrictPerms}
	}
	s.cached = NewCached(s.inner, s.model, disk, cfg.MemoryTTL, cfg.Metrics)
	return s, nil
}

// Embed returns the vector for text, consulting the caches first.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.cached.Embed(ctx, text)
}

// Model is the identifier of the backing model.
func (s *Service) Model() string { return s.model }

// MaxInputTokens is the model's input window used to truncate page contexts.
func (s *Service) MaxInputTokens() int { return budget.ModelInputTokens(s.model) }

// Ping checks backend reachability. Backends without a remote side always succeed.
func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases in-memory state. The service must not be used afterwards.
func (s *Service) Close() error {
	if s.cached != nil {
		s.cached.Flush()
	}
	return nil
}

// Normalize returns a unit-length copy of v. It fails with an
// EmbeddingError for empty or zero vectors.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty vector: %w", faults.ErrEmbedding)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("zero or non-finite vector: %w", faults.ErrEmbedding)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, accumulated in float64.
// Dimension mismatches and zero vectors are EmbeddingErrors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch %d vs %d: %w", len(a), len(b), faults.ErrEmbedding)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("zero vector: %w", faults.ErrEmbedding)
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(s) {
		return 0, fmt.Errorf("non-finite similarity: %w", faults.ErrEmbedding)
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return s, nil
}
