// Package extract is the last stage of the funnel: it pulls table grids from
// a qualifying page and persists each one as its own artifact.
package extract

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/artifact"
	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
	"github.com/hyperifyio/tablefunnel/internal/tables"
)

// TableSource finds the tables of one page of an open document.
type TableSource interface {
	Tables(pageIndex int) ([]tables.Table, error)
}

// Writer persists one grid.
type Writer interface {
	Write(ref artifact.Ref, rows [][]string, padded bool) (artifact.Artifact, error)
}

// Extractor is safe for concurrent use when its Writer is.
type Extractor struct {
	Writer  Writer
	Metrics *metrics.Funnel
}

// ExtractPage writes every table of the page and returns the artifacts
// written. A page without tables yields no artifacts and no error. A failed
// write is logged and skipped; detection failure is returned as a
// ParseError.
func (e *Extractor) ExtractPage(ctx context.Context, docID string, src TableSource, pageIndex int) ([]artifact.Artifact, error) {
	found, err := src.Tables(pageIndex)
	if err != nil {
		e.Metrics.Fault(string(faults.ParseError), "extract")
		return nil, faults.OnPage(faults.ParseError, "extract", docID, pageIndex, err)
	}
	if len(found) == 0 {
		log.Info().Str("doc", docID).Int("page", pageIndex+1).Msg("no tables found on relevant page")
		e.Metrics.Table("none_found")
		return nil, nil
	}
	out := make([]artifact.Artifact, 0, len(found))
	for i, t := range found {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rows, padded := tables.Normalize(t.Rows)
		if len(rows) == 0 {
			continue
		}
		a, err := e.Writer.Write(artifact.Ref{DocumentID: docID, PageIndex: pageIndex, TableIndex: i}, rows, padded || t.Padded)
		if err != nil {
			log.Warn().Err(err).Str("doc", docID).Int("page", pageIndex+1).Int("table", i+1).Msg("table write failed")
			e.Metrics.Table("write_error")
			continue
		}
		e.Metrics.Table("written")
		log.Info().Str("doc", docID).Int("page", a.Page).Int("table", a.Table).Str("path", a.Path).Msg("extracted")
		out = append(out, a)
	}
	return out, nil
}
