// Package gate is the document-level lexical filter. It reads only the
// leading page of a stored document, scores it against the run's keyword set
// and deletes the stored bytes of every rejected document.
package gate

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/metrics"
)

// DefaultThreshold is the score a document must exceed to be accepted.
const DefaultThreshold = 0.3

// LeadingPages is how many pages the gate reads.
const LeadingPages = 1

// TextSource extracts the text of the first pageLimit pages of a stored document.
type TextSource interface {
	LeadingText(path string, pageLimit int) (string, error)
}

// Verdict reasons.
const (
	ReasonAccepted       = "accepted"
	ReasonBelowThreshold = "below_threshold"
	ReasonNoText         = "no_text"
	ReasonParseError     = "parse_error"
)

// Verdict is computed once per document.
type Verdict struct {
	URL      string  `json:"url"`
	Path     string  `json:"path,omitempty"`
	Score    float64 `json:"score"`
	Accepted bool    `json:"accepted"`
	Reason   string  `json:"reason"`
}

// Gatekeeper is safe for concurrent use once constructed.
type Gatekeeper struct {
	Text      TextSource
	Keywords  []string
	Threshold float64
	Metrics   *metrics.Funnel
}

// Evaluate scores the document stored at path. It never returns an error:
// extraction failures and empty text are rejections. Rejected documents are
// removed from disk.
func (g *Gatekeeper) Evaluate(ctx context.Context, url, path string) Verdict {
	v := Verdict{URL: url, Path: path}
	text, err := g.Text.LeadingText(path, LeadingPages)
	switch {
	case err != nil:
		fe := faults.New(faults.ParseError, "gate", url, err)
		log.Warn().Err(fe).Str("url", url).Str("stage", "gate").Msg("leading text extraction failed")
		g.Metrics.Fault(string(faults.ParseError), "gate")
		v.Reason = ReasonParseError
	case strings.TrimSpace(text) == "":
		fe := faults.New(faults.ParseError, "gate", url, errors.New("no extractable text on leading page"))
		log.Info().Err(fe).Str("url", url).Str("stage", "gate").Msg("document rejected")
		g.Metrics.Fault(string(faults.ParseError), "gate")
		v.Reason = ReasonNoText
	default:
		v.Score = Score(text, g.Keywords)
		v.Accepted = v.Score > g.Threshold
		if v.Accepted {
			v.Reason = ReasonAccepted
		} else {
			v.Reason = ReasonBelowThreshold
		}
	}
	g.Metrics.Document(v.Accepted, v.Score)
	log.Debug().Str("url", url).Float64("score", v.Score).Bool("accepted", v.Accepted).Str("reason", v.Reason).Msg("gate verdict")
	if !v.Accepted && path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("remove rejected document")
		}
	}
	return v
}
