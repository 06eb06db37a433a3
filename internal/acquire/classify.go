package acquire

import (
	"strings"

	"github.com/hyperifyio/tablefunnel/internal/fetch"
)

// Decision is the outcome of classifying one fetched candidate.
type Decision int

const (
	// Take claims the next ordinal for the candidate.
	Take Decision = iota
	// SkipContentType drops a candidate whose declared type is not accepted.
	SkipContentType
	// SkipBudget drops a candidate because the document cap is reached.
	SkipBudget
)

func (d Decision) String() string {
	switch d {
	case Take:
		return "take"
	case SkipContentType:
		return "skip_content_type"
	case SkipBudget:
		return "skip_budget"
	default:
		return "unknown"
	}
}

// Classify decides what happens to a fetched candidate given its declared
// content type, the accepted media types, and how many documents have been
// acquired against the cap. The content type is checked first.
func Classify(contentType string, accepted []string, acquired, limit int) Decision {
	if len(accepted) == 0 {
		accepted = fetch.PDFContentTypes
	}
	mt := fetch.MediaType(contentType)
	ok := false
	for _, a := range accepted {
		if strings.EqualFold(mt, a) {
			ok = true
			break
		}
	}
	if !ok {
		return SkipContentType
	}
	if limit > 0 && acquired >= limit {
		return SkipBudget
	}
	return Take
}
