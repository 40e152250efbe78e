package embed

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		want    float64
		wantErr error
	}{
		{name: "orthogonal", a: []float64{1, 0, 0}, b: []float64{0, 1, 0}, want: 0},
		{name: "identical", a: []float64{0.3, 0.5, 0.1}, b: []float64{0.3, 0.5, 0.1}, want: 1},
		{name: "opposite", a: []float64{1, 2, 3}, b: []float64{-1, -2, -3}, want: -1},
		{name: "scaled", a: []float64{1, 1}, b: []float64{5, 5}, want: 1},
		{name: "partial", a: []float64{1, 0}, b: []float64{1, 1}, want: 0.7071067811865475},
		{name: "zero vector", a: []float64{0, 0, 0}, b: []float64{1, 2, 3}, wantErr: ErrZeroMagnitude},
		{name: "both zero", a: []float64{0, 0}, b: []float64{0, 0}, wantErr: ErrZeroMagnitude},
		{name: "empty", a: nil, b: nil, wantErr: ErrZeroMagnitude},
		{name: "dimension mismatch", a: []float64{1, 0}, b: []float64{1, 0, 0}, wantErr: ErrDimensionMismatch},
		{name: "NaN component", a: []float64{math.NaN(), 1}, b: []float64{1, 1}, wantErr: ErrInvalidVector},
		{name: "infinite component", a: []float64{1, 1}, b: []float64{math.Inf(-1), 0}, wantErr: ErrInvalidVector},
		{name: "magnitude overflow", a: []float64{1e200, 1e200}, b: []float64{1, 1}, wantErr: ErrInvalidVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Senior Go engineer with Kubernetes experience")
	require.NoError(t, err)
	assert.Len(t, a, DefaultDimensions)

	again, err := e.Embed(ctx, "senior go engineer, with KUBERNETES experience!")
	require.NoError(t, err)
	assert.Equal(t, a, again, "tokenisation ignores case and punctuation")

	self, err := Cosine(a, again)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-9)

	related, err := e.Embed(ctx, "Go engineer, Kubernetes and Terraform")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "pastry chef croissant baking")
	require.NoError(t, err)

	simRelated, err := Cosine(a, related)
	require.NoError(t, err)
	simUnrelated, err := Cosine(a, unrelated)
	require.NoError(t, err)
	assert.Greater(t, simRelated, simUnrelated)

	empty, err := e.Embed(ctx, "  ...  ")
	require.NoError(t, err)
	_, err = Cosine(empty, a)
	assert.ErrorIs(t, err, ErrZeroMagnitude)
}

func TestHashingEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashingEmbedder(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeClient struct {
	vecs  [][]float64
	err   error
	model string
}

func (f *fakeClient) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	f.model = model
	return f.vecs, f.err
}

func TestOpenAIEmbedder(t *testing.T) {
	t.Run("default model", func(t *testing.T) {
		c := &fakeClient{vecs: [][]float64{{0.1, 0.2}}}
		got, err := NewOpenAIEmbedder(c, "").Embed(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.2}, got)
		assert.Equal(t, DefaultModel, c.model)
	})

	t.Run("client error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewOpenAIEmbedder(&fakeClient{err: boom}, "m").Embed(context.Background(), "text")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no vector", func(t *testing.T) {
		_, err := NewOpenAIEmbedder(&fakeClient{vecs: [][]float64{{}}}, "m").Embed(context.Background(), "text")
		assert.Error(t, err)
	})
}
