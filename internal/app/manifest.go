package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/tablefunnel/internal/acquire"
	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/gate"
	"github.com/hyperifyio/tablefunnel/internal/pipeline"
)

// manifestMeta captures high-level run details that aid reproducibility.
type manifestMeta struct {
	RunID             string    `json:"run_id"`
	Entity            string    `json:"entity"`
	Query             string    `json:"query"`
	Version           string    `json:"version"`
	Commit            string    `json:"commit"`
	EmbedProvider     string    `json:"embed_provider"`
	EmbedModel        string    `json:"embed_model"`
	EmbedBaseURL      string    `json:"embed_base_url,omitempty"`
	LexicalThreshold  float64   `json:"lexical_threshold"`
	SemanticThreshold float64   `json:"semantic_threshold"`
	DocumentCap       int       `json:"document_cap"`
	SessionTimeout    string    `json:"session_timeout"`
	Acquired          int       `json:"acquired"`
	TimedOut          bool      `json:"timed_out"`
	HTTPCache         bool      `json:"http_cache"`
	DryRun            bool      `json:"dry_run,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// runManifest is the machine-readable record of a run.
type runManifest struct {
	Meta       manifestMeta              `json:"meta"`
	Keywords   []string                  `json:"keywords"`
	Candidates []string                  `json:"candidates,omitempty"`
	Skipped    []acquire.Skip            `json:"skipped"`
	Verdicts   []gate.Verdict            `json:"verdicts"`
	Documents  []pipeline.DocumentReport `json:"documents"`
	Artifacts  []artifact.Artifact       `json:"artifacts"`
}

func marshalManifestJSON(m runManifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// renderReport writes the human-readable summary of a run as Markdown.
func renderReport(m runManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Table extraction: %s\n\n", m.Meta.Entity)
	fmt.Fprintf(&b, "- Run: %s\n", m.Meta.RunID)
	fmt.Fprintf(&b, "- Query: `%s`\n", m.Meta.Query)
	fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(m.Keywords, ", "))
	fmt.Fprintf(&b, "- Thresholds: lexical > %.2f, semantic >= %.2f\n", m.Meta.LexicalThreshold, m.Meta.SemanticThreshold)
	fmt.Fprintf(&b, "- Documents acquired: %d of cap %d\n", m.Meta.Acquired, m.Meta.DocumentCap)
	if m.Meta.TimedOut {
		fmt.Fprintf(&b, "- Acquisition stopped at the %s session timeout; results are partial\n", m.Meta.SessionTimeout)
	}
	fmt.Fprintf(&b, "- Started: %s\n", m.Meta.StartedAt.UTC().Format(time.RFC3339))

	if m.Meta.DryRun {
		b.WriteString("\n## Candidates (dry run)\n\n")
		if len(m.Candidates) == 0 {
			b.WriteString("No candidates found.\n")
		}
		for i, u := range m.Candidates {
			fmt.Fprintf(&b, "%d. %s\n", i+1, u)
		}
		return b.String()
	}

	b.WriteString("\n## Documents\n\n")
	if len(m.Verdicts) == 0 {
		b.WriteString("No documents were acquired.\n")
	} else {
		b.WriteString("| # | Score | Decision | URL |\n|---|---|---|---|\n")
		for i, v := range m.Verdicts {
			decision := "rejected (" + v.Reason + ")"
			if v.Accepted {
				decision = "accepted"
			}
			fmt.Fprintf(&b, "| %d | %.3f | %s | [%s](%s) |\n", i+1, v.Score, decision, shortURL(v.URL), v.URL)
		}
	}

	b.WriteString("\n## Pages\n\n")
	listed := false
	for _, d := range m.Documents {
		var kept []string
		for _, p := range d.Pages {
			if p.Accepted {
				kept = append(kept, fmt.Sprintf("p%d (%.2f, %d tables)", p.Page, p.Score, p.Tables))
			}
		}
		if d.Err != "" {
			fmt.Fprintf(&b, "- %s: skipped: %s\n", d.DocumentID, d.Err)
			listed = true
			continue
		}
		fmt.Fprintf(&b, "- %s: %d pages, relevant: %s\n", d.DocumentID, len(d.Pages), orNone(kept))
		listed = true
	}
	if !listed {
		b.WriteString("No pages were scanned.\n")
	}

	b.WriteString("\n## Artifacts\n\n")
	if len(m.Artifacts) == 0 {
		b.WriteString("No tables were extracted.\n")
	} else {
		b.WriteString("| Document | Page | Table | Size | File |\n|---|---|---|---|---|\n")
		for _, a := range m.Artifacts {
			size := fmt.Sprintf("%dx%d", a.Rows, a.Cols)
			if a.Padded {
				size += " (padded)"
			}
			fmt.Fprintf(&b, "| %s | %d | %d | %s | %s |\n", a.DocumentID, a.Page, a.Table, size, a.Path)
		}
	}

	if len(m.Skipped) > 0 {
		b.WriteString("\n## Skipped candidates\n\n")
		kinds := map[string]int{}
		for _, s := range m.Skipped {
			kinds[string(s.Kind)]++
		}
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, "- %s: %d\n", k, kinds[k])
		}
	}
	return b.String()
}

func shortURL(u string) string {
	const limit = 60
	if len(u) <= limit {
		return u
	}
	return u[:limit-3] + "..."
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
