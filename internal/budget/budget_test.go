package budget

import (
	"strings"
	"testing"
)

func TestEstimateTokensFromChars(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 1},
		{5, 2},
		{400, 100},
	}
	for _, c := range cases {
		got := EstimateTokensFromChars(c.in)
		if got != c.want {
			t.Fatalf("EstimateTokensFromChars(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestModelInputTokens(t *testing.T) {
	cases := map[string]int{
		"":                          DefaultInputTokens,
		"yiyanghkust/finbert-tone":  512,
		"TEXT-EMBEDDING-3-SMALL":    8191,
		"text-embedding-foo":        8191,
		"nomic-embed-text":          8192,
		"sentence-transformers/all": DefaultInputTokens,
	}
	for model, want := range cases {
		if got := ModelInputTokens(model); got != want {
			t.Fatalf("ModelInputTokens(%q) = %d, want %d", model, got, want)
		}
	}
}

func TestTruncateToTokens(t *testing.T) {
	s := strings.Repeat("word ", 100)
	got := TruncateToTokens(s, 10)
	if EstimateTokens(got) > 10 {
		t.Fatalf("truncated text too long: %d tokens", EstimateTokens(got))
	}
	if !strings.HasPrefix(s, got) || strings.HasSuffix(got, " ") {
		t.Fatalf("expected clean prefix, got %q", got)
	}
	if TruncateToTokens("short", 10) != "short" {
		t.Fatal("short input must be unchanged")
	}
	if TruncateToTokens(s, 0) != s {
		t.Fatal("zero budget disables truncation")
	}
}

func TestTruncateToTokens_NoWhitespace(t *testing.T) {
	s := strings.Repeat("ä", 40) // 80 bytes, 20 tokens
	got := TruncateToTokens(s, 5)
	if len(got) > 20 {
		t.Fatalf("expected at most 20 bytes, got %d", len(got))
	}
	if !strings.HasPrefix(s, got) {
		t.Fatalf("not a prefix")
	}
}
