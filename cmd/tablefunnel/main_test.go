package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/tablefunnel/internal/app"
)

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funnel.yaml")
	body := "entity: File Corp\ndocuments:\n  cap: 12\nsession:\n  timeout: 45s\nthresholds:\n  lexical: 0.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCUMENT_CAP", "20")
	t.Setenv("TABLEFUNNEL_CONFIG", "")

	cfg, err := loadConfig([]string{"-config", path, "-entity", "Flag Corp", "-keywords", " balance sheet, ,cash flow "})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Entity != "Flag Corp" {
		t.Fatalf("entity = %q, want flag value", cfg.Entity)
	}
	if cfg.DocumentCap != 20 {
		t.Fatalf("cap = %d, want env value over file", cfg.DocumentCap)
	}
	if cfg.SessionTimeout != 45*time.Second || cfg.LexicalThreshold != 0.5 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[1] != "cash flow" {
		t.Fatalf("keywords = %q", cfg.Keywords)
	}
	if cfg.SemanticThreshold != app.DefaultSemanticThreshold {
		t.Fatalf("default semantic threshold lost: %v", cfg.SemanticThreshold)
	}
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	_, err := loadConfig([]string{"-config=" + filepath.Join(t.TempDir(), "nope.toml")})
	if !errors.Is(err, app.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("TABLEFUNNEL_CONFIG", "env.yaml")
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"--config=b.toml", "-v"}, "b.toml"},
		{[]string{"-v", "--", "-config", "c.json"}, "env.yaml"},
		{[]string{"config", "d.yaml"}, "env.yaml"},
	}
	for _, c := range cases {
		if got := configPath(c.args); got != c.want {
			t.Fatalf("configPath(%q) = %q, want %q", c.args, got, c.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("init app: %w", app.ErrInvalidConfig), 2},
		{app.ErrNoRelevantDocuments, 2},
		{errors.New("write report: disk full"), 1},
		{nil, 0},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func dryRunConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()
	results := filepath.Join(dir, "results.json")
	if err := os.WriteFile(results, []byte(`[{"Title":"AR","URL":"https://example.com/ar.pdf"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := app.DefaultConfig()
	cfg.Entity = "ACME"
	cfg.FileSearchPath = results
	cfg.DryRun = true
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.DocsDir = filepath.Join(dir, "pdfs")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ReportPath = filepath.Join(dir, "report.md")
	return cfg
}

// Smoke test: a dry run with an offline result file writes a report.
func TestRun_DryRun_WritesReport(t *testing.T) {
	cfg := dryRunConfig(t)
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(cfg.ReportPath)
	if err != nil || len(b) == 0 {
		t.Fatalf("expected report, err=%v", err)
	}
}

func TestRun_InvalidConfigIsExitTwo(t *testing.T) {
	err := run(context.Background(), app.DefaultConfig())
	if exitCode(err) != 2 {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_OutputFailureIsNonZero(t *testing.T) {
	cfg := dryRunConfig(t)
	// a regular file where the output directory should be
	if err := os.WriteFile(cfg.OutputDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), cfg)
	if err == nil || exitCode(err) != 1 {
		t.Fatalf("err = %v, exit %d, want a failed run with exit 1", err, exitCode(err))
	}
}
