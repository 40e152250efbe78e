package scoring

import (
	"fmt"

	"github.com/nomis52/docscore/extract"
)

// FeedbackStatus is the verdict of the feedback stage.
type FeedbackStatus string

const (
	// StatusNoChangesNeeded ends the refinement loop.
	StatusNoChangesNeeded FeedbackStatus = "No changes needed"
	// StatusChangesNeeded asks for another refinement pass.
	StatusChangesNeeded FeedbackStatus = "Changes needed"
)

// Documents is written by the extract stage.
type Documents struct {
	Candidate   string
	Requirement string
}

// Embeddings is written by the embed stage.
type Embeddings struct {
	Candidate   []float64
	Requirement []float64
}

// Similarity is written by the similarity stage.
type Similarity struct {
	// Cosine is in [-1, 1].
	Cosine float64
}

// Assessment is written by a criterion stage.
type Assessment struct {
	Score     float64
	Rationale string
	// Focus is the label the judge was asked to focus on.
	Focus string
}

// Combined is written by the combine stage.
type Combined struct {
	FinalScore  float64
	Explanation string
}

// Feedback is written by the feedback stage.
type Feedback struct {
	Status       FeedbackStatus
	Completeness float64
	Text         string
}

// State is threaded through every stage of one evaluation. Each pointer
// group is owned by exactly one stage and is nil until that stage has run.
// Iteration starts at 1 and only the refinement decision advances it.
type State struct {
	Candidate   extract.Handle
	Requirement extract.Handle
	Iteration   int

	Documents  *Documents
	Embeddings *Embeddings
	Similarity *Similarity
	CriterionA *Assessment
	CriterionB *Assessment
	Combined   *Combined
	Feedback   *Feedback
}

// Update is the output of a stage or of the refinement decision. A nil
// group leaves the state untouched.
type Update struct {
	// Iteration is the next pass number. Zero leaves it unchanged.
	Iteration int

	Documents  *Documents
	Embeddings *Embeddings
	Similarity *Similarity
	CriterionA *Assessment
	CriterionB *Assessment
	Combined   *Combined
	Feedback   *Feedback
}

// NewState returns the initial state of an evaluation.
func NewState(candidate, requirement extract.Handle) State {
	return State{Candidate: candidate, Requirement: requirement, Iteration: 1}
}

// Merge folds u into s. Groups present in u replace the ones in s, every
// other field is kept. Iteration never decreases.
func Merge(s State, u Update) State {
	if u.Iteration > s.Iteration {
		s.Iteration = u.Iteration
	}
	if u.Documents != nil {
		s.Documents = u.Documents
	}
	if u.Embeddings != nil {
		s.Embeddings = u.Embeddings
	}
	if u.Similarity != nil {
		s.Similarity = u.Similarity
	}
	if u.CriterionA != nil {
		s.CriterionA = u.CriterionA
	}
	if u.CriterionB != nil {
		s.CriterionB = u.CriterionB
	}
	if u.Combined != nil {
		s.Combined = u.Combined
	}
	if u.Feedback != nil {
		s.Feedback = u.Feedback
	}
	return s
}

// need returns v or ErrMissingField when the group has not been written yet.
func need[T any](v *T, field string) (*T, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return v, nil
}
