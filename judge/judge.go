// Package judge scores documents with a text generation model.
//
// A Scorer answers two questions: how well does a subject match a
// reference with respect to a focus, and is an evaluation summary complete
// enough to act on. Model responses must contain a "Score:" and a
// "Rationale:" line. Anything else is reported as ErrMalformedResponse.
package judge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedResponse is returned when a model response does not carry a
// parsable score and rationale.
var ErrMalformedResponse = errors.New("malformed judgment response")

// Judgment is a score in [0, 100] with its rationale.
type Judgment struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Scorer produces judgments.
type Scorer interface {
	// Score rates how well subject matches reference, focusing on label.
	Score(ctx context.Context, subject, reference, label string) (Judgment, error)
	// Completeness rates whether an evaluation summary of a subject is
	// complete enough for a decision about reference.
	Completeness(ctx context.Context, summary, reference string) (Judgment, error)
}

// ParseResponse extracts the first "Score:" and "Rationale:" lines of text.
func ParseResponse(text string) (Judgment, error) {
	var (
		scoreText, rationale string
		haveScore, haveWhy   bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		if v, ok := cutLabel(line, "Score:"); ok && !haveScore {
			scoreText, haveScore = v, true
			continue
		}
		if v, ok := cutLabel(line, "Rationale:"); ok && !haveWhy {
			rationale, haveWhy = v, true
		}
	}

	if !haveScore {
		return Judgment{}, fmt.Errorf("%w: no Score line", ErrMalformedResponse)
	}
	if !haveWhy {
		return Judgment{}, fmt.Errorf("%w: no Rationale line", ErrMalformedResponse)
	}

	scoreText = strings.TrimSuffix(strings.TrimSpace(scoreText), "/100")
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreText), 64)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: score %q is not a number", ErrMalformedResponse, scoreText)
	}
	j := Judgment{Score: score, Rationale: rationale}
	if err := j.Validate(); err != nil {
		return Judgment{}, err
	}
	return j, nil
}

// Validate reports ErrMalformedResponse unless the score is a number in
// [0, 100].
func (j Judgment) Validate() error {
	if math.IsNaN(j.Score) || j.Score < 0 || j.Score > 100 {
		return fmt.Errorf("%w: score %g outside [0, 100]", ErrMalformedResponse, j.Score)
	}
	return nil
}

func cutLabel(line, label string) (string, bool) {
	if len(line) < len(label) || !strings.EqualFold(line[:len(label)], label) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(line[len(label):], "* ")), true
}
