package artifact

import (
	"encoding/csv"
	"io"
	"os"
)

// CSV writes RFC 4180 files. The sheet name is not represented.
type CSV struct{}

func (CSV) Format() string { return FormatCSV }
func (CSV) Ext() string    { return "csv" }

func (CSV) Encode(w io.Writer, _ string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// ReadCSV reads a CSV artifact back.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
