package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// DefaultInputTokens is used for unknown embedding models. It matches the
// window of the BERT family, the smallest in common use.
const DefaultInputTokens = 512

// ModelInputTokens returns the maximum input window of an embedding model.
// Matching is case-insensitive on the last path segment so that names like
// "yiyanghkust/finbert-tone" resolve the same as "finbert-tone".
func ModelInputTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return DefaultInputTokens
	}
	if v, ok := knownEmbeddingMax[name]; ok {
		return v
	}
	switch {
	case strings.HasPrefix(name, "text-embedding-"):
		return 8191
	case strings.Contains(name, "bert"), strings.Contains(name, "minilm"), strings.HasPrefix(name, "bge-"):
		return 512
	}
	return DefaultInputTokens
}

// TruncateToTokens cuts s at a whitespace boundary so that its estimate does
// not exceed maxTokens. Non-positive maxTokens returns s unchanged.
func TruncateToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(s) <= maxTokens {
		return s
	}
	limit := maxTokens * 4
	if limit > len(s) {
		return s
	}
	cut := strings.LastIndexAny(s[:limit], " \t\n")
	if cut <= 0 {
		cut = limit
		// Do not split a UTF-8 sequence.
		for cut > 0 && s[cut]&0xC0 == 0x80 {
			cut--
		}
	}
	return strings.TrimSpace(s[:cut])
}

// knownEmbeddingMax contains input windows for common embedding models.
var knownEmbeddingMax = map[string]int{
	"text-embedding-3-small": 8191,
	"text-embedding-3-large": 8191,
	"text-embedding-ada-002": 8191,
	"finbert-tone":           512,
	"nomic-embed-text":       8192,
	"mxbai-embed-large":      512,
	"all-minilm":             256,
	"bge-m3":                 8192,
}
