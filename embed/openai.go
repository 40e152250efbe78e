package embed

import (
	"context"
	"fmt"

	"github.com/nomis52/docscore/clients/openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// EmbeddingClient is the part of the OpenAI client used by OpenAIEmbedder.
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}

var _ EmbeddingClient = (*openai.Client)(nil)

// OpenAIEmbedder calls an OpenAI compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client EmbeddingClient
	model  string
}

// NewOpenAIEmbedder returns an embedder using model. An empty model selects DefaultModel.
func NewOpenAIEmbedder(client EmbeddingClient, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.client.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding model %s returned no vector", e.model)
	}
	return vecs[0], nil
}
