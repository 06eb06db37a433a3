package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperifyio/tablefunnel/internal/cache"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/robots"
)

// PDFContentTypes is the default allow-list.
var PDFContentTypes = []string{"application/pdf", "application/x-pdf"}

// DefaultMaxBodyBytes caps a single download when MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Client wraps http.Client and provides timeouts and limited retry on transient errors.
// All failures returned by Get are *faults.Error values of kind FetchError or
// UnsupportedContentType.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// Optional on-disk cache for HTTP GET bodies and headers.
	Cache *cache.HTTPCache
	// If true, bypass cache entirely and fetch fresh (no conditional headers),
	// but still save the latest response to cache.
	BypassCache bool

	// AllowedContentTypes lists accepted media types. Empty means PDFContentTypes.
	AllowedContentTypes []string
	// MaxBodyBytes caps the body size. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// RequestsPerSecond paces request starts across the client. Zero disables pacing.
	RequestsPerSecond float64
	// Robots, when set, is consulted before every download. Its crawl delay
	// spaces requests to the same host.
	Robots RobotsPolicy
	// MaxCrawlDelay caps a host's crawl delay. Zero means DefaultMaxCrawlDelay.
	MaxCrawlDelay time.Duration

	// internal limiters initialized on first use
	limiter     chan struct{}
	limiterOnce sync.Once
	pacer       *rate.Limiter
	pacerOnce   sync.Once
	hostMu      sync.Mutex
	hostPacers  map[string]*rate.Limiter
}

// DefaultMaxCrawlDelay caps the crawl delay honored for a host.
const DefaultMaxCrawlDelay = 10 * time.Second

// RobotsPolicy decides whether a URL may be downloaded.
type RobotsPolicy interface {
	Check(ctx context.Context, url string) (robots.Decision, error)
}

// ErrRobotsDisallowed is wrapped in the FetchError of an excluded URL.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	if e.Code >= 500 {
		return fmt.Sprintf("server error: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a GET with context, user-agent, and bounded retry for transient errors.
// The declared content type is checked before any body byte is read.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	var host string
	if c.Robots != nil {
		d, err := c.Robots.Check(ctx, url)
		if err != nil {
			return nil, "", classify(url, err)
		}
		if !d.Allowed {
			return nil, "", classify(url, ErrRobotsDisallowed)
		}
		if d.CrawlDelay > 0 {
			host = hostOf(url)
			c.setCrawlDelay(host, d.CrawlDelay)
		}
	}
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, url); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := c.waitHost(ctx, host); err != nil {
			return nil, "", classify(url, err)
		}
		body, ct, newEtag, newLastMod, status, err := c.tryOnce(ctx, url, etag, lastMod)
		if err == nil {
			if c.Cache != nil && status == http.StatusOK {
				_ = c.Cache.Save(ctx, url, ct, newEtag, newLastMod, body)
			}
			// If 304 and cache available, return cached body
			if status == http.StatusNotModified && c.Cache != nil {
				if cached, err := c.Cache.LoadBody(ctx, url); err == nil {
					if ct == "" {
						if meta, err := c.Cache.LoadMeta(ctx, url); err == nil && meta != nil {
							ct = meta.ContentType
						}
					}
					return cached, ct, nil
				}
			}
			return body, ct, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, "", classify(url, err)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, "", classify(url, ctx.Err())
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, "", classify(url, lastErr)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// setCrawlDelay paces requests to host at most one per delay.
func (c *Client) setCrawlDelay(host string, delay time.Duration) {
	if host == "" {
		return
	}
	limit := c.MaxCrawlDelay
	if limit <= 0 {
		limit = DefaultMaxCrawlDelay
	}
	delay = min(delay, limit)
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	if c.hostPacers == nil {
		c.hostPacers = make(map[string]*rate.Limiter)
	}
	if p, ok := c.hostPacers[host]; ok {
		p.SetLimit(rate.Every(delay))
		return
	}
	c.hostPacers[host] = rate.NewLimiter(rate.Every(delay), 1)
}

func (c *Client) waitHost(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}
	c.hostMu.Lock()
	p := c.hostPacers[host]
	c.hostMu.Unlock()
	if p == nil {
		return nil
	}
	if err := p.Wait(ctx); err != nil {
		return fmt.Errorf("crawl delay: %w", err)
	}
	return nil
}

func classify(url string, err error) error {
	if faults.KindOf(err) != "" {
		return err
	}
	return faults.New(faults.FetchError, "fetch", url, err)
}

func (c *Client) tryOnce(ctx context.Context, url string, etag string, lastMod string) ([]byte, string, string, string, int, error) {
	// Concurrency gate per client instance
	c.acquire()
	defer c.release()

	if p := c.rateLimiter(); p != nil {
		if err := p.Wait(ctx); err != nil {
			return nil, "", "", "", 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", "", "", 0, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, "", "", "", 0, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", "", "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		// 304: no body expected
		return nil, resp.Header.Get("Content-Type"), resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", "", "", resp.StatusCode, &statusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !c.allowed(contentType) {
		return nil, "", "", "", resp.StatusCode, faults.New(faults.UnsupportedContentType, "fetch", url, fmt.Errorf("content type %q", contentType))
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", "", "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, "", "", "", resp.StatusCode, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return b, contentType, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), resp.StatusCode, nil
}

func isTransient(err error) bool {
	// Treat HTTP 5xx and per-request deadline as transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.Code >= 500
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	hops := c.RedirectMaxHops
	if hops <= 0 {
		hops = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= hops {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// MediaType returns the lower-cased media type of a Content-Type header value.
func MediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt, _, _ = strings.Cut(ct, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func (c *Client) allowed(ct string) bool {
	allow := c.AllowedContentTypes
	if len(allow) == 0 {
		allow = PDFContentTypes
	}
	mt := MediaType(ct)
	for _, a := range allow {
		if mt == strings.ToLower(a) {
			return true
		}
	}
	return false
}

func (c *Client) rateLimiter() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	c.pacerOnce.Do(func() {
		burst := int(c.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.pacer = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
	})
	return c.pacer
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
