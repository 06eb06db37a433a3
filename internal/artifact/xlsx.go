package artifact

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// XLSX writes one worksheet per artifact.
type XLSX struct{}

func (XLSX) Format() string { return FormatXLSX }
func (XLSX) Ext() string    { return "xlsx" }

func (XLSX) Encode(w io.Writer, sheet string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	cols := 0
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		cols = max(cols, len(r))
	}
	// The dimension carries the grid shape; readers drop trailing empty cells and rows.
	if len(rows) > 0 && cols > 0 {
		end, err := excelize.CoordinatesToCellName(cols, len(rows))
		if err != nil {
			return err
		}
		if err := f.SetSheetDimension(sheet, "A1:"+end); err != nil {
			return fmt.Errorf("dimension: %w", err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// ReadXLSX returns the rows of the first sheet, padded with empty cells and
// rows back to the sheet dimension.
func ReadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	dim, err := f.GetSheetDimension(sheets[0])
	if err != nil || dim == "" {
		return rows, err
	}
	_, end, _ := strings.Cut(dim, ":")
	if end == "" {
		end = dim
	}
	cols, n, err := excelize.CellNameToCoordinates(end)
	if err != nil {
		return nil, fmt.Errorf("%s: dimension %q: %w", path, dim, err)
	}
	return padGrid(rows, n, cols), nil
}

// padGrid extends rows to at least n rows of at least cols cells each.
func padGrid(rows [][]string, n, cols int) [][]string {
	for len(rows) < n {
		rows = append(rows, nil)
	}
	for i, r := range rows {
		for len(r) < cols {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}
