package embed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/sells-group/nonprofit-ranker/internal/normalize"
)

// DefaultDimensions is the vector length of the hashing embedder.
const DefaultDimensions = 256

// Hashing is an offline embedder that hashes folded unigrams and bigrams
// into a signed bag-of-features vector and L2-normalizes it. It is
// deterministic and needs no network, so it is the default provider.
type Hashing struct {
	Dimensions int
}

// NewHashing returns a Hashing embedder with dims dimensions.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hashing{Dimensions: dims}
}

// Embed returns the hashed feature vector of text. Text without tokens
// yields the zero vector.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	vec := make([]float64, dims)
	tokens := normalize.Tokens(text)
	for i, tok := range tokens {
		addFeature(vec, tok, 1)
		if i > 0 {
			addFeature(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func addFeature(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
