package app

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run identifies one invocation and owns its output locations.
type Run struct {
	ID        string
	Entity    string
	StartedAt time.Time
	// Dir is the run-scoped artifact directory under OutputDir.
	Dir string
	// DocsDir receives the downloaded documents of this run.
	DocsDir string
}

// newRun derives run-scoped paths. The directory name combines the entity
// slug, a short entity hash and the start time, so runs for different
// entities or at different times never share a directory.
func newRun(cfg Config, now time.Time) Run {
	id := uuid.New().String()
	entity := strings.TrimSpace(cfg.Entity)
	h := sha256.Sum256([]byte(strings.ToLower(entity)))
	name := slugify(entity) + "-" + hex.EncodeToString(h[:])[:8] + "-" + now.UTC().Format("20060102T150405Z")
	return Run{
		ID:        id,
		Entity:    entity,
		StartedAt: now.UTC(),
		Dir:       filepath.Join(cfg.OutputDir, name),
		DocsDir:   filepath.Join(cfg.DocsDir, name),
	}
}

// reportPath is the Markdown report location; defaults to report.md in the run dir.
func (r Run) reportPath(cfg Config) string {
	if p := strings.TrimSpace(cfg.ReportPath); p != "" {
		return p
	}
	return filepath.Join(r.Dir, "report.md")
}

func (r Run) manifestPath() string { return filepath.Join(r.Dir, "manifest.json") }

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.Trim(s[:48], "-")
	}
	if s == "" {
		s = "entity"
	}
	return s
}
