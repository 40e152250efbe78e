// Package scoring evaluates a candidate document against a requirement
// document.
//
// The evaluation is a graph of seven stages: text extraction, embedding,
// cosine similarity, two judged criteria, a weighted combination and a
// feedback review. When the review asks for changes, the two criteria are
// scored again with the feedback included, up to a fixed number of passes.
//
// Each stage writes exactly one group of the State. The refinement decision
// is the only thing that advances the iteration counter.
package scoring
