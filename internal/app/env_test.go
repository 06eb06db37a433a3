package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	unsetenv(t, "FOO")
	unsetenv(t, "BAR")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
}

func TestLoadEnvFiles_ExistingEnvWins(t *testing.T) {
	t.Setenv("K", "from-env")
	unsetenv(t, "K2")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\nK2=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K2=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "from-env" {
		t.Fatalf("process env must win: got %q", got)
	}
	if got := os.Getenv("K2"); got != "first" {
		t.Fatalf("earlier file must win: got %q", got)
	}
}

func TestApplyEnvOverrides_FromEnv(t *testing.T) {
	t.Setenv("ENTITY", "Acme Oyj")
	t.Setenv("KEYWORDS", "balance sheet, cash flow ,")
	t.Setenv("SEARX_URL", "")
	t.Setenv("SEARXNG_URL", "http://searxng.example")
	t.Setenv("DOCUMENT_CAP", "5")
	t.Setenv("SEMANTIC_THRESHOLD", "0.65")
	t.Setenv("SESSION_TIMEOUT", "15s")
	t.Setenv("CACHE_CLEAR", "yes")
	t.Setenv("DRY_RUN", "off")
	t.Setenv("WORKERS", "not-a-number")

	cfg := DefaultConfig()
	cfg.DryRun = true
	ApplyEnvOverrides(&cfg)

	if cfg.Entity != "Acme Oyj" {
		t.Fatalf("entity: %q", cfg.Entity)
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[1] != "cash flow" {
		t.Fatalf("keywords: %v", cfg.Keywords)
	}
	if cfg.SearxURL != "http://searxng.example" {
		t.Fatalf("searx alias: %q", cfg.SearxURL)
	}
	if cfg.DocumentCap != 5 || cfg.SemanticThreshold != 0.65 || cfg.SessionTimeout != 15*time.Second {
		t.Fatalf("numeric overrides: %+v", cfg)
	}
	if !cfg.CacheClear || cfg.DryRun {
		t.Fatalf("bool overrides: clear=%v dry=%v", cfg.CacheClear, cfg.DryRun)
	}
	if cfg.Workers != DefaultWorkers {
		t.Fatalf("invalid int must be ignored, got %d", cfg.Workers)
	}
}
