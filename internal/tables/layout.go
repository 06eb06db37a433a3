// Package tables reconstructs text lines and table grids from positioned
// glyphs. It works on plain coordinates and has no PDF dependency.
package tables

import (
	"math"
	"sort"
	"strings"
)

// Glyph is a run of text at a position. Y grows upwards, as in PDF user space.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Cell is a horizontally contiguous text span on one line.
type Cell struct {
	X0, X1 float64
	Text   string
}

// Row is one visual line, cells ordered left to right.
type Row struct {
	Y     float64
	Cells []Cell
}

// Text joins the row's cells with single spaces.
func (r Row) Text() string {
	parts := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}

// Layout gap factors, relative to font size.
const (
	wordGap   = 0.15
	columnGap = 1.5
	lineSlack = 0.5
)

// Layout groups glyphs into rows, top to bottom, and splits each row into
// cells wherever the horizontal gap exceeds columnGap font sizes.
func Layout(glyphs []Glyph) []Row {
	gs := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" && g.S != " " {
			continue
		}
		gs = append(gs, g)
	}
	if len(gs) == 0 {
		return nil
	}
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Y != gs[j].Y {
			return gs[i].Y > gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	var lines [][]Glyph
	var lineY float64
	for _, g := range gs {
		if n := len(lines); n > 0 && math.Abs(g.Y-lineY) <= lineSlack*fontSize(g) {
			lines[n-1] = append(lines[n-1], g)
			continue
		}
		lines = append(lines, []Glyph{g})
		lineY = g.Y
	}

	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		if r := splitCells(line); len(r.Cells) > 0 {
			rows = append(rows, r)
		}
	}
	return rows
}

func splitCells(line []Glyph) Row {
	row := Row{Y: line[0].Y}
	var b strings.Builder
	var cur Cell
	open := false
	flush := func() {
		if !open {
			return
		}
		cur.Text = strings.Join(strings.Fields(b.String()), " ")
		if cur.Text != "" {
			row.Cells = append(row.Cells, cur)
		}
		b.Reset()
		open = false
	}
	for _, g := range line {
		fs := fontSize(g)
		if g.S == " " {
			b.WriteByte(' ')
			continue
		}
		if open {
			gap := g.X - cur.X1
			switch {
			case gap > columnGap*fs:
				flush()
			case gap > wordGap*fs:
				b.WriteByte(' ')
			}
		}
		if !open {
			cur = Cell{X0: g.X}
			open = true
		}
		b.WriteString(g.S)
		if end := g.X + width(g); end > cur.X1 {
			cur.X1 = end
		}
	}
	flush()
	return row
}

func fontSize(g Glyph) float64 {
	if g.FontSize > 0 {
		return g.FontSize
	}
	return 10
}

// width falls back to an average glyph advance when the producer reports none.
func width(g Glyph) float64 {
	if g.W > 0 {
		return g.W
	}
	n := float64(len([]rune(g.S)))
	return n * 0.5 * fontSize(g)
}
