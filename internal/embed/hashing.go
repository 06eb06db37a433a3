package embed

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperifyio/tablefunnel/internal/faults"
	"github.com/hyperifyio/tablefunnel/internal/textutil"
)

// DefaultHashDimensions is the vector size of the hashing embedder.
const DefaultHashDimensions = 256

// HashingEmbedder is a deterministic bag-of-words embedder using signed
// feature hashing over folded tokens. It needs no model server and is meant
// for offline runs and tests; texts sharing vocabulary score high.
type HashingEmbedder struct {
	Dimensions int
}

func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hash embed: %v: %w", err, faults.ErrEmbedding)
	}
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	toks := textutil.Tokenize(text)
	if len(toks) == 0 {
		return nil, fmt.Errorf("hash embed: no tokens: %w", faults.ErrEmbedding)
	}
	v := make([]float32, dims)
	for _, t := range toks {
		f := fnv.New64a()
		_, _ = f.Write([]byte(t))
		sum := f.Sum64()
		idx := int(sum % uint64(dims))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return v, nil
}
