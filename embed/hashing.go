package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector size of a HashingEmbedder.
const DefaultDimensions = 512

// HashingEmbedder is a deterministic offline embedder. Lower-cased word
// unigrams and bigrams are hashed into a fixed number of buckets with a
// signed hash and the result is L2 normalised.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns a HashingEmbedder producing dims-sized vectors.
// A non-positive dims selects DefaultDimensions.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Embed implements Embedder. Text without any words yields a zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dims)
	words := tokenize(text)
	for i, w := range words {
		e.add(vec, w)
		if i > 0 {
			e.add(vec, words[i-1]+" "+w)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (e *HashingEmbedder) add(vec []float64, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
