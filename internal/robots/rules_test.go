package robots

import (
	"testing"
	"time"
)

func TestIsAllowed_AgentPrecedenceAndLongestMatch(t *testing.T) {
	rules := parseRobots("User-agent: tablefunnel\nDisallow: /private\n\nUser-agent: *\nAllow: /\n")
	if rules.IsAllowed("tablefunnel/1.0", "/private/page") {
		t.Fatalf("named group should disallow")
	}
	if !rules.IsAllowed("otheragent", "/private/page") {
		t.Fatalf("wildcard group should allow")
	}

	rules = parseRobots("User-agent: tablefunnel\nDisallow: /private # staff only\nAllow: /private/public\n")
	if !rules.IsAllowed("tablefunnel", "/private/public/ar.pdf") {
		t.Fatalf("longer allow should win")
	}
	if rules.IsAllowed("tablefunnel", "/private/else") {
		t.Fatalf("shorter disallow should apply")
	}
}

func TestIsAllowed_WildcardsAndAnchors(t *testing.T) {
	rules := parseRobots("User-agent: *\nDisallow: /*.pdf$\nAllow: /reports/*.pdf$\nDisallow: /*?session=\n")
	cases := map[string]bool{
		"/foo/file.pdf":         false,
		"/reports/ar.pdf":       true,
		"/foo/file.pdf?x=1":     true,
		"/index.html?session=1": false,
		"/about":                true,
	}
	for path, want := range cases {
		if got := rules.IsAllowed("any", path); got != want {
			t.Fatalf("IsAllowed(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCrawlDelayFor(t *testing.T) {
	rules := parseRobots("User-agent: tablefunnel\nCrawl-delay: 2\n\nUser-agent: *\nCrawl-delay: 7\n")
	if d := rules.CrawlDelayFor("tablefunnel"); d == nil || *d != 2*time.Second {
		t.Fatalf("named delay = %v", d)
	}
	if d := rules.CrawlDelayFor("other"); d == nil || *d != 7*time.Second {
		t.Fatalf("wildcard delay = %v", d)
	}
	if d := (Rules{}).CrawlDelayFor("x"); d != nil {
		t.Fatalf("empty rules delay = %v", d)
	}
}
