// Package pdftest writes small uncompressed PDF fixtures with text placed at
// exact positions, so tests can build pages with known lines and grids.
package pdftest

import (
	"github.com/jung-kurt/gofpdf"
)

// Cell is text drawn at X points from the left edge.
type Cell struct {
	X    float64
	Text string
}

// Line is a baseline Y points from the top edge.
type Line struct {
	Y     float64
	Cells []Cell
}

// Page is the content of one page.
type Page []Line

// Text is a one-column line helper.
func Text(y float64, s string) Line { return Line{Y: y, Cells: []Cell{{X: 50, Text: s}}} }

// Row is a table row helper with cells at the given x positions.
func Row(y float64, xs []float64, cells ...string) Line {
	l := Line{Y: y}
	for i, c := range cells {
		if i < len(xs) {
			l.Cells = append(l.Cells, Cell{X: xs[i], Text: c})
		}
	}
	return l
}

// Write renders pages into an A4 PDF at path using 10pt Helvetica.
func Write(path string, pages ...Page) error {
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 10)
	for _, p := range pages {
		doc.AddPage()
		for _, l := range p {
			for _, c := range l.Cells {
				doc.Text(c.X, l.Y, c.Text)
			}
		}
	}
	return doc.OutputFileAndClose(path)
}
