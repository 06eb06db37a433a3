package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReportPDF_RendersMarkdown(t *testing.T) {
	md := renderReport(sampleManifest())
	out := filepath.Join(t.TempDir(), "report.pdf")
	if err := writeReportPDF(md, out); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(b) < 5 || string(b[:5]) != "%PDF-" {
		t.Fatalf("not a pdf: %q", b[:min(len(b), 16)])
	}
}

func TestSplitTableRow(t *testing.T) {
	cells := splitTableRow("| a | b |c|")
	if len(cells) != 3 || cells[0] != "a" || cells[2] != "c" {
		t.Fatalf("cells = %q", cells)
	}
	if !isSeparatorRow(splitTableRow("|---|:--:|")) {
		t.Fatalf("separator not detected")
	}
	if isSeparatorRow(cells) {
		t.Fatalf("data row treated as separator")
	}
}
