package app

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/tablefunnel/internal/acquire"
	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/gate"
	"github.com/hyperifyio/tablefunnel/internal/pipeline"
)

func sampleManifest() runManifest {
	return runManifest{
		Meta: manifestMeta{
			RunID:             "run-1",
			Entity:            "ACME Corp",
			Query:             "ACME Corp annual report filetype:pdf",
			LexicalThreshold:  0.3,
			SemanticThreshold: 0.7,
			DocumentCap:       30,
			SessionTimeout:    "1m0s",
			Acquired:          2,
			StartedAt:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		Keywords: []string{"acme corp", "balance sheet"},
		Skipped: []acquire.Skip{
			{URL: "https://example.com/a.html", Kind: faults.UnsupportedContentType},
			{URL: "https://example.com/b.html", Kind: faults.UnsupportedContentType},
			{URL: "https://example.com/c.pdf", Kind: faults.FetchError},
		},
		Verdicts: []gate.Verdict{
			{URL: "https://example.com/report.pdf", Score: 0.58, Accepted: true, Reason: gate.ReasonAccepted},
			{URL: "https://example.com/garden.pdf", Score: 0, Reason: gate.ReasonBelowThreshold},
		},
		Documents: []pipeline.DocumentReport{{
			DocumentID: "report",
			Pages: []pipeline.PageReport{
				{Page: 1, Matched: true, Scored: true, Score: 0.4},
				{Page: 2, Matched: true, Scored: true, Score: 0.81, Accepted: true, Tables: 1},
			},
		}},
		Artifacts: []artifact.Artifact{{DocumentID: "report", Page: 2, Table: 1, Path: "out/report_p2_t1.xlsx", Rows: 3, Cols: 3, Padded: true}},
	}
}

func TestRenderReport_Sections(t *testing.T) {
	out := renderReport(sampleManifest())
	for _, want := range []string{
		"# Table extraction: ACME Corp",
		"- Documents acquired: 2 of cap 30",
		"| 1 | 0.580 | accepted | [https://example.com/report.pdf](https://example.com/report.pdf) |",
		"| 2 | 0.000 | rejected (below_threshold) |",
		"- report: 2 pages, relevant: p2 (0.81, 1 tables)",
		"| report | 2 | 1 | 3x3 (padded) | out/report_p2_t1.xlsx |",
		"- fetch_error: 1",
		"- unsupported_content_type: 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "partial") {
		t.Fatalf("unexpected timeout note:\n%s", out)
	}
}

func TestRenderReport_TimeoutAndDryRun(t *testing.T) {
	m := sampleManifest()
	m.Meta.TimedOut = true
	if out := renderReport(m); !strings.Contains(out, "1m0s session timeout; results are partial") {
		t.Fatalf("missing timeout note:\n%s", out)
	}

	m = sampleManifest()
	m.Meta.DryRun = true
	m.Candidates = []string{"https://example.com/x.pdf"}
	out := renderReport(m)
	if !strings.Contains(out, "1. https://example.com/x.pdf") || strings.Contains(out, "## Artifacts") {
		t.Fatalf("dry run report:\n%s", out)
	}
}

func TestMarshalManifestJSON_Fields(t *testing.T) {
	b, err := marshalManifestJSON(sampleManifest())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"meta", "keywords", "skipped", "verdicts", "documents", "artifacts"} {
		if _, ok := got[key]; !ok {
			t.Fatalf("missing %q in %s", key, b)
		}
	}
	if strings.Contains(string(b), `"candidates"`) {
		t.Fatalf("candidates should be omitted outside dry run")
	}
}
