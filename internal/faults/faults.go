// Package faults classifies per-item failures of a run so that callers can
// apply a different policy per kind instead of suppressing everything alike.
//
// None of these kinds is fatal to a run. Configuration problems are reported
// by the app package before any document is touched.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names one class of per-item failure or control condition.
type Kind string

const (
	// FetchError is a network or HTTP failure while acquiring a document.
	FetchError Kind = "fetch_error"
	// UnsupportedContentType marks a response whose declared type is not accepted.
	UnsupportedContentType Kind = "unsupported_content_type"
	// ParseError is a text or table extraction failure on one document or page.
	ParseError Kind = "parse_error"
	// EmbeddingError is an embedding or similarity failure; pages fail closed.
	EmbeddingError Kind = "embedding_error"
	// BudgetExceeded is the control condition raised once the document cap is reached.
	BudgetExceeded Kind = "budget_exceeded"
	// SessionTimeout is the control condition that ends acquisition early.
	SessionTimeout Kind = "session_timeout"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrFetch                  = &Error{Kind: FetchError}
	ErrUnsupportedContentType = &Error{Kind: UnsupportedContentType}
	ErrParse                  = &Error{Kind: ParseError}
	ErrEmbedding              = &Error{Kind: EmbeddingError}
	ErrBudgetExceeded         = &Error{Kind: BudgetExceeded}
	ErrSessionTimeout         = &Error{Kind: SessionTimeout}
)

// Error carries enough context to reproduce a failure: the stage that saw it,
// the source document identity and, for page-level failures, the page index.
type Error struct {
	Kind   Kind
	Stage  string
	Source string
	// Page is the zero-based page index, or -1 when not page specific.
	Page int
	Err  error
}

// New builds a document-level error.
func New(kind Kind, stage, source string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Source: source, Page: -1, Err: err}
}

// OnPage builds a page-level error.
func OnPage(kind Kind, stage, source string, page int, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Source: source, Page: page, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString(" [")
		b.WriteString(e.Stage)
		b.WriteString("]")
	}
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	if e.Page >= 0 && e.Stage != "" {
		fmt.Fprintf(&b, " page %d", e.Page+1)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the package sentinels work
// with errors.Is regardless of stage and source.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
