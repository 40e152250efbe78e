package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/docscore/embed"
	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/judge"
	"github.com/nomis52/docscore/scoring"
)

type nopScorer struct{}

func (nopScorer) Score(ctx context.Context, subject, reference, label string) (judge.Judgment, error) {
	return judge.Judgment{}, nil
}

func (nopScorer) Completeness(ctx context.Context, summary, reference string) (judge.Judgment, error) {
	return judge.Judgment{}, nil
}

type mockWorkflowProvider struct {
	workflow *scoring.Workflow
}

func (m *mockWorkflowProvider) Workflow() *scoring.Workflow {
	return m.workflow
}

func newTestWorkflow(t *testing.T) *scoring.Workflow {
	t.Helper()
	w, err := scoring.NewWorkflow(scoring.DefaultConfig(), scoring.Deps{
		Extractor: extract.NewTextExtractor(),
		Embedder:  embed.NewHashingEmbedder(16),
		Scorer:    nopScorer{},
	})
	require.NoError(t, err)
	return w
}

func TestGraphHandler(t *testing.T) {
	h := NewGraphHandler(&mockWorkflowProvider{workflow: newTestWorkflow(t)})

	t.Run("mermaid", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "graph TB")
		assert.Contains(t, w.Body.String(), "Assess Technical Skills")
	})

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph?format=summary", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Entry: extract")
		assert.Contains(t, w.Body.String(), "Max iterations: 3")
	})

	t.Run("unknown format", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph?format=dot", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGraphHandler_NoWorkflow(t *testing.T) {
	w := httptest.NewRecorder()
	NewGraphHandler(&mockWorkflowProvider{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
