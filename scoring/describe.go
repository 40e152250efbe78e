package scoring

import (
	"fmt"
	"strings"
)

// Mermaid renders the workflow as a Mermaid flowchart.
func (w *Workflow) Mermaid() string {
	return w.graph.Mermaid(map[string]string{
		NodeExtract:    "Extract text",
		NodeEmbed:      "Embed documents",
		NodeSimilarity: "Cosine similarity",
		NodeCriterionA: "Assess " + w.cfg.CriterionA.Title,
		NodeCriterionB: "Assess " + w.cfg.CriterionB.Title,
		NodeCombine:    "Combine scores",
		NodeFeedback:   "Review evaluation",
	})
}

// Summary describes the workflow settings and topology as plain text.
func (w *Workflow) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entry: %s\n", w.graph.Entry())
	fmt.Fprintf(&sb, "Max iterations: %d\n", w.cfg.MaxIterations)
	fmt.Fprintf(&sb, "Feedback threshold: %g\n", w.cfg.FeedbackThreshold)
	fmt.Fprintf(&sb, "Step budget: %d\n", w.budget)
	fmt.Fprintf(&sb, "Weights: similarity=%g %s=%g %s=%g\n",
		w.cfg.Weights.Similarity,
		w.cfg.CriterionA.Title, w.cfg.Weights.CriterionA,
		w.cfg.CriterionB.Title, w.cfg.Weights.CriterionB)
	sb.WriteString("Edges:\n")
	for _, e := range w.graph.Edges() {
		switch {
		case e.Outcome == 0:
			fmt.Fprintf(&sb, "  %s -> %s\n", e.From, e.To)
		case e.Back:
			fmt.Fprintf(&sb, "  %s -[%s, loop]-> %s\n", e.From, e.Outcome, e.To)
		default:
			fmt.Fprintf(&sb, "  %s -[%s]-> %s\n", e.From, e.Outcome, e.To)
		}
	}
	return sb.String()
}
