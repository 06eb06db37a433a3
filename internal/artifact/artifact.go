// Package artifact serializes extracted tables. Each table becomes exactly
// one file whose name is derived from the source document, the page and the
// table position, so names never collide within a run.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Encoder writes one grid in a file format.
type Encoder interface {
	Format() string
	Ext() string
	Encode(w io.Writer, sheet string, rows [][]string) error
}

// EncoderFor returns the encoder for a format name.
func EncoderFor(format string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		return XLSX{}, nil
	case FormatCSV:
		return CSV{}, nil
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

// Ref identifies a table by zero-based page and table index.
type Ref struct {
	DocumentID string
	PageIndex  int
	TableIndex int
}

// Artifact describes a written table. Page and Table are one-based.
type Artifact struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Table      int    `json:"table"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Padded     bool   `json:"padded,omitempty"`
}

// ErrExists is returned when an artifact with the same name was already written.
var ErrExists = errors.New("artifact already exists")

// Store writes artifacts under Dir, creating it on demand.
type Store struct {
	Dir     string
	Encoder Encoder
}

// Write creates the artifact file exclusively and encodes rows into it. A
// failed encode removes the partial file.
func (s *Store) Write(ref Ref, rows [][]string, padded bool) (Artifact, error) {
	enc := s.Encoder
	if enc == nil {
		enc = XLSX{}
	}
	a := Artifact{
		DocumentID: ref.DocumentID,
		Page:       ref.PageIndex + 1,
		Table:      ref.TableIndex + 1,
		Format:     enc.Format(),
		Rows:       len(rows),
		Padded:     padded,
	}
	if len(rows) > 0 {
		a.Cols = len(rows[0])
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return a, fmt.Errorf("mkdir artifacts: %w", err)
	}
	a.Path = filepath.Join(s.Dir, FileName(ref.DocumentID, a.Page, a.Table, enc.Ext()))
	f, err := os.OpenFile(a.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return a, fmt.Errorf("%s: %w", a.Path, ErrExists)
		}
		return a, err
	}
	sheet := fmt.Sprintf("Page %d Table %d", a.Page, a.Table)
	if err := enc.Encode(f, sheet, rows); err != nil {
		f.Close()
		_ = os.Remove(a.Path)
		return a, fmt.Errorf("encode %s: %w", a.Format, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(a.Path)
		return a, err
	}
	return a, nil
}

// FileName is <docID>_p<page>_t<table>.<ext> with one-based page and table.
func FileName(docID string, page, table int, ext string) string {
	return fmt.Sprintf("%s_p%d_t%d.%s", docID, page, table, strings.TrimPrefix(ext, "."))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlug = 48

func slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlug {
		s = strings.Trim(s[:maxSlug], "-")
	}
	if s == "" {
		s = "document"
	}
	return s
}

// DocumentID derives a stable identifier from a source URL: the slug of the
// file basename without extension and the first 10 hex digits of sha256(url).
func DocumentID(source string) string {
	base := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(base)
	base = strings.TrimSuffix(base, path.Ext(base))
	h := sha256.Sum256([]byte(source))
	return slugify(base) + "-" + hex.EncodeToString(h[:])[:10]
}
