package scoring

import (
	"fmt"
	"math"
)

const weightTolerance = 1e-9

// Weights are the shares of the three component scores in the final score.
type Weights struct {
	Similarity float64 `yaml:"similarity" json:"similarity"`
	CriterionA float64 `yaml:"criterion_a" json:"criterion_a"`
	CriterionB float64 `yaml:"criterion_b" json:"criterion_b"`
}

// DefaultWeights returns 0.3 similarity, 0.4 criterion A and 0.3 criterion B.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.3, CriterionA: 0.4, CriterionB: 0.3}
}

// Validate checks that every weight is finite and non-negative and that
// they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"similarity":  w.Similarity,
		"criterion_a": w.CriterionA,
		"criterion_b": w.CriterionB,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s weight %v must be a non-negative number", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Similarity + w.CriterionA + w.CriterionB; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %g, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// Combine returns the weighted final score. cosine is rescaled from [-1, 1]
// to the 0-100 scale of the criterion scores.
func (w Weights) Combine(cosine, a, b float64) float64 {
	return w.Similarity*cosine*100 + w.CriterionA*a + w.CriterionB*b
}
