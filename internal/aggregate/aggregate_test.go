package aggregate

import "testing"

func TestNormalize_RejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"", "mailto:a@b.c", "/relative.pdf", "ftp://x.example/a"} {
		if _, ok := Normalize(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	if got, ok := Normalize("HTTPS://Example.com/a.pdf?utm_source=x#f"); !ok || got != "https://example.com/a.pdf" {
		t.Fatalf("unexpected normalize: %q %v", got, ok)
	}
}
