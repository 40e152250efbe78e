// Package embed produces vector embeddings for text and compares them.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrZeroMagnitude is returned by Cosine when a vector has zero length.
	ErrZeroMagnitude = errors.New("vector has zero magnitude")
	// ErrDimensionMismatch is returned by Cosine when vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimensions differ")
	// ErrInvalidVector is returned by Cosine when a vector has a NaN or
	// infinite component, or a magnitude too large to represent.
	ErrInvalidVector = errors.New("invalid vector")
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrZeroMagnitude)
	}

	var dot, normA, normB float64
	for i := range a {
		if !finite(a[i]) || !finite(b[i]) {
			return 0, fmt.Errorf("%w: component %d is %v and %v", ErrInvalidVector, i, a[i], b[i])
		}
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroMagnitude
	}
	if !finite(normA) || !finite(normB) || !finite(dot) {
		return 0, fmt.Errorf("%w: magnitude overflows", ErrInvalidVector)
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, fmt.Errorf("%w: similarity is not a number", ErrInvalidVector)
	}
	// Rounding can push identical or opposite vectors just past the bounds.
	return math.Max(-1, math.Min(1, sim)), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
