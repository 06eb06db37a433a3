package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Fold returns the Unicode case-folded form of s. A new Caser is created per
// call because cases.Caser values are not safe for concurrent use.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Tokenize folds s and splits it into letter/digit runs. Tokens longer than
// three runes that end in a single "s" lose it, so "statements" and
// "statement" meet on the same term.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		out = append(out, Stem(f))
	}
	return out
}

// Stem strips a trailing plural "s" from an already folded token.
func Stem(tok string) string {
	if utf8.RuneCountInString(tok) <= 3 {
		return tok
	}
	if strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}

// SplitList splits a comma separated list, trimming blanks and dropping empties.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
