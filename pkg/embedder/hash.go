package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultHashDimensions matches the width the offline index was designed for.
const DefaultHashDimensions = 384

// HashEmbedder is a deterministic, dependency-free embedder: each token is
// hashed into a fixed-width bucket vector which is then L2-normalized. It has
// no semantic understanding but gives identical texts identical vectors and
// related texts overlapping ones, which is enough to exercise the semantic
// pipeline without an API key.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. dims <= 0 selects the default
// width.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed hashes each text independently.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = h.hash(text)
	}
	return embeddings, nil
}

// EmbedSingle hashes one text.
func (h *HashEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return h.hash(text), nil
}

// Dimensions returns the vector width.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// Close is a no-op.
func (h *HashEmbedder) Close() error {
	return nil
}

func (h *HashEmbedder) hash(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := strings.Fields(strings.ToLower(text))
	for _, token := range tokens {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		vec[int(hasher.Sum32())%h.dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var _ Client = (*HashEmbedder)(nil)
