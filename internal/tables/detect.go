package tables

import "math"

// Table is one rectangular grid found on a page.
type Table struct {
	PageIndex int
	// Index is the zero-based position of the table on its page.
	Index int
	Rows  [][]string
	// Padded is set when short rows were right-padded to the table width.
	Padded bool
}

// Width is the number of columns.
func (t Table) Width() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Detector finds stream-style tables: runs of consecutive rows that each
// have at least MinCols cells, at least MinRows rows long.
type Detector struct {
	MinRows int
	MinCols int
}

// DefaultDetector requires two rows of two cells.
var DefaultDetector = Detector{MinRows: 2, MinCols: 2}

// Detect returns the tables found in rows, top to bottom.
func (d Detector) Detect(pageIndex int, rows []Row) []Table {
	minRows, minCols := d.MinRows, d.MinCols
	if minRows <= 0 {
		minRows = 2
	}
	if minCols <= 1 {
		minCols = 2
	}
	var out []Table
	start := -1
	emit := func(end int) {
		if start >= 0 && end-start >= minRows {
			grid := alignColumns(rows[start:end])
			norm, padded := Normalize(grid)
			out = append(out, Table{PageIndex: pageIndex, Index: len(out), Rows: norm, Padded: padded})
		}
		start = -1
	}
	for i, r := range rows {
		if len(r.Cells) >= minCols {
			if start < 0 {
				start = i
			}
			continue
		}
		emit(i)
	}
	emit(len(rows))
	return out
}

// alignColumns maps every cell onto the column anchors of the widest row,
// choosing the anchor with the largest horizontal overlap, or the nearest
// centre when nothing overlaps.
func alignColumns(run []Row) [][]string {
	anchor := run[0].Cells
	for _, r := range run[1:] {
		if len(r.Cells) > len(anchor) {
			anchor = r.Cells
		}
	}
	grid := make([][]string, 0, len(run))
	for _, r := range run {
		row := make([]string, len(anchor))
		for _, c := range r.Cells {
			k := nearestAnchor(anchor, c)
			if row[k] == "" {
				row[k] = c.Text
			} else {
				row[k] += " " + c.Text
			}
		}
		grid = append(grid, row)
	}
	return grid
}

func nearestAnchor(anchor []Cell, c Cell) int {
	best, bestOverlap := -1, 0.0
	for i, a := range anchor {
		ov := math.Min(a.X1, c.X1) - math.Max(a.X0, c.X0)
		if ov > bestOverlap {
			best, bestOverlap = i, ov
		}
	}
	if best >= 0 {
		return best
	}
	mid := (c.X0 + c.X1) / 2
	best, bestDist := 0, math.Inf(1)
	for i, a := range anchor {
		if d := math.Abs((a.X0+a.X1)/2 - mid); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Normalize makes a grid rectangular by right-padding short rows with empty
// cells. It reports whether any padding happened. The input is not modified.
func Normalize(rows [][]string) ([][]string, bool) {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	padded := false
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, width)
		copy(row, r)
		if len(r) < width {
			padded = true
		}
		out = append(out, row)
	}
	return out, padded
}
