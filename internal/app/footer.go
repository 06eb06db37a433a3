package app

import (
	"fmt"
	"strings"
)

// appendReproFooter appends a minimal, deterministic footer that records
// configuration useful for reproducibility and auditing.
func appendReproFooter(markdown string, m manifestMeta, documents, artifacts int) string {
	var b strings.Builder
	b.WriteString(markdown)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Reproducibility: version=%s; commit=%s; embed=%s/%s; documents=%d; artifacts=%d; http_cache=%t\n",
		strings.TrimSpace(m.Version), strings.TrimSpace(m.Commit),
		strings.TrimSpace(m.EmbedProvider), strings.TrimSpace(m.EmbedModel),
		documents, artifacts, m.HTTPCache)
	return b.String()
}
