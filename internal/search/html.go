package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// HTMLProvider scrapes a classic HTML results page: every absolute http(s)
// link off the results host is a candidate, and pagination follows the
// a#pnnext or rel="next" link. The cursor is the absolute URL of the next page.
type HTMLProvider struct {
	// BaseURL is the results endpoint, e.g. https://www.google.com/search.
	BaseURL string
	// QueryParam names the query parameter; defaults to "q".
	QueryParam string
	HTTPClient *http.Client
	UserAgent  string
	// MaxBodyBytes caps the results page read; zero means 4 MiB.
	MaxBodyBytes int64
}

func (h *HTMLProvider) Name() string { return "html" }

func (h *HTMLProvider) Search(ctx context.Context, query string, cursor string) (Page, error) {
	target := cursor
	if target == "" {
		u, err := url.Parse(h.BaseURL)
		if err != nil || u.Host == "" {
			return Page{}, fmt.Errorf("invalid html search base url %q", h.BaseURL)
		}
		param := h.QueryParam
		if param == "" {
			param = "q"
		}
		q := u.Query()
		q.Set(param, query)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Page{}, err
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	hc := h.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("html search status: %d", resp.StatusCode)
	}
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Page{}, fmt.Errorf("read results page: %w", err)
	}
	return ParseHTMLResults(resp.Request.URL, body, h.Name())
}

// ParseHTMLResults extracts candidate links and the next-page link from a
// results page fetched from base.
func ParseHTMLResults(base *url.URL, body []byte, source string) (Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	var p Page
	seen := map[string]struct{}{}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !strings.EqualFold(n.Data, "a") {
			return
		}
		href := attr(n, "href")
		if href == "" {
			return
		}
		if p.Next == "" && (attr(n, "id") == "pnnext" || hasToken(attr(n, "rel"), "next")) {
			if u, err := base.Parse(href); err == nil {
				p.Next = u.String()
			}
			return
		}
		target := unwrapRedirect(base, href)
		if target == nil || !isHTTP(target) || strings.EqualFold(target.Host, base.Host) {
			return
		}
		key := target.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		p.Results = append(p.Results, Result{
			Title:  strings.Join(strings.Fields(textOf(n)), " "),
			URL:    key,
			Source: source,
		})
	})
	return p, nil
}

// unwrapRedirect resolves href against base and unwraps result redirectors
// of the form /url?q=<target>.
func unwrapRedirect(base *url.URL, href string) *url.URL {
	u, err := base.Parse(href)
	if err != nil {
		return nil
	}
	if strings.EqualFold(u.Host, base.Host) && u.Path == "/url" {
		for _, key := range []string{"q", "url"} {
			if v := u.Query().Get(key); v != "" {
				if t, err := url.Parse(v); err == nil {
					return t
				}
			}
		}
	}
	return u
}

func isHTTP(u *url.URL) bool {
	s := strings.ToLower(u.Scheme)
	return (s == "http" || s == "https") && u.Host != ""
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, tok) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	})
	return b.String()
}
