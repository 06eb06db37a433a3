package gate

import (
	"math"

	"github.com/hyperifyio/tablefunnel/internal/textutil"
)

// Okapi BM25 parameters.
const (
	K1 = 1.5
	B  = 0.75
)

// Score rates text against the keyword set with Okapi BM25, treating text
// as the only document of its corpus. Query terms are the distinct tokens of
// all keywords. IDF uses ln(1 + (N-n+0.5)/(n+0.5)), which stays positive
// when every term occurs in the single document.
func Score(text string, keywords []string) float64 {
	doc := textutil.Tokenize(text)
	if len(doc) == 0 {
		return 0
	}
	tf := make(map[string]int, len(doc))
	for _, t := range doc {
		tf[t]++
	}
	const n = 1.0
	dl := float64(len(doc))
	avgdl := dl
	var score float64
	seen := map[string]struct{}{}
	for _, k := range keywords {
		for _, term := range textutil.Tokenize(k) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			df := 1.0
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * f * (K1 + 1) / (f + K1*(1-B+B*dl/avgdl))
		}
	}
	return score
}
