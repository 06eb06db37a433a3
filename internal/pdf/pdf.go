// Package pdf adapts github.com/ledongthuc/pdf to the text and table
// interfaces of the funnel. Page indexes are zero-based throughout.
package pdf

import (
	"fmt"
	"os"
	"strings"
	"sync"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/hyperifyio/tablefunnel/internal/tables"
)

// Document is an open PDF. Methods are serialized; the underlying reader is
// not safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	f        *os.File
	r        *lpdf.Reader
	detector tables.Detector
	rows     map[int][]tables.Row
}

// Open parses the cross-reference table of the file at path.
func Open(path string, detector tables.Detector) (doc *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open pdf: %v", rec)
		}
	}()
	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Document{f: f, r: r, detector: detector, rows: map[int][]tables.Row{}}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.r.NumPage()
}

// Rows returns the laid-out rows of page i.
func (d *Document) Rows(i int) ([]tables.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rowsLocked(i)
}

func (d *Document) rowsLocked(i int) (rows []tables.Row, err error) {
	if rows, ok := d.rows[i]; ok {
		return rows, nil
	}
	if i < 0 || i >= d.r.NumPage() {
		return nil, fmt.Errorf("page %d out of range [0,%d)", i, d.r.NumPage())
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read page %d: %v", i+1, rec)
		}
	}()
	p := d.r.Page(i + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d missing", i+1)
	}
	content := p.Content()
	glyphs := make([]tables.Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, tables.Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	rows = tables.Layout(glyphs)
	d.rows[i] = rows
	return rows, nil
}

// PageText returns the text of page i, one line per visual row.
func (d *Document) PageText(i int) (string, error) {
	rows, err := d.Rows(i)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.Text())
	}
	return strings.Join(lines, "\n"), nil
}

// Tables runs the detector over page i.
func (d *Document) Tables(i int) ([]tables.Table, error) {
	rows, err := d.Rows(i)
	if err != nil {
		return nil, err
	}
	return d.detector.Detect(i, rows), nil
}

// Close releases the file handle.
func (d *Document) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// Extractor opens documents by path.
type Extractor struct {
	Detector tables.Detector
}

// Open returns a Document. The returned value satisfies pipeline.Pages.
func (e Extractor) Open(path string) (*Document, error) {
	det := e.Detector
	if det.MinRows == 0 && det.MinCols == 0 {
		det = tables.DefaultDetector
	}
	return Open(path, det)
}

// LeadingText returns the text of the first pageLimit pages.
func (e Extractor) LeadingText(path string, pageLimit int) (string, error) {
	doc, err := e.Open(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	n := doc.NumPages()
	if pageLimit > 0 && pageLimit < n {
		n = pageLimit
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		text, err := doc.PageText(i)
		if err != nil {
			return b.String(), err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
