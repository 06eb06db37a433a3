package app

import (
	"strings"
	"testing"
)

func TestAppendReproFooter_AppendsDeterministicFooter(t *testing.T) {
	base := "# Title\n\nBody\n"
	meta := manifestMeta{Version: "1.2.3", Commit: "abc", EmbedProvider: "openai", EmbedModel: "text-embedding-3-small", HTTPCache: true}
	out := appendReproFooter(base, meta, 3, 5)
	if !strings.HasPrefix(out, base) {
		t.Fatalf("footer must not alter the body")
	}
	want := "Reproducibility: version=1.2.3; commit=abc; embed=openai/text-embedding-3-small; documents=3; artifacts=5; http_cache=true\n"
	if !strings.HasSuffix(out, want) {
		t.Fatalf("footer = %q", out)
	}
	if appendReproFooter(base, meta, 3, 5) != out {
		t.Fatalf("footer not deterministic")
	}
}
