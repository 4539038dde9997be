package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDimension(t *testing.T) {
	l := Local{}
	vecs, err := l.Embed(context.Background(), []string{"a lease agreement"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], LocalDimension)
}

// Embedding is deterministic for identical text.
func TestLocalDeterministic(t *testing.T) {
	l := Local{}
	text := "the tenant shall pay rent monthly"
	first, err := l.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := l.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		assert.Equal(t, first[0], next[0])
	}
}

// Similarity(v, v) == 1 for any non-zero vector.
func TestSimilaritySelfIsOne(t *testing.T) {
	l := Local{}
	vecs, err := l.Embed(context.Background(), []string{"binding legal obligation"})
	require.NoError(t, err)
	sim := Similarity(vecs[0], vecs[0])
	assert.InDelta(t, 1.0, sim, 1e-6)
}

// Similarity is symmetric.
func TestSimilaritySymmetric(t *testing.T) {
	l := Local{}
	vecs, err := l.Embed(context.Background(), []string{"the first party", "the second party"})
	require.NoError(t, err)
	ab := Similarity(vecs[0], vecs[1])
	ba := Similarity(vecs[1], vecs[0])
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestSimilarityMismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Similarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestSimilarityZeroVectorIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Similarity([]float32{0, 0}, []float32{1, 1}))
}

type stubProvider struct {
	name string
	dim  int
	err  error
}

func (s stubProvider) Name() string   { return s.name }
func (s stubProvider) Dimension() int { return s.dim }
func (s stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func TestChainFallsBackOnError(t *testing.T) {
	failing := stubProvider{name: "down", dim: LocalDimension, err: assert.AnError}
	c := NewChain(failing, Local{})
	vecs, err := c.Embed(context.Background(), []string{"clause text"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], LocalDimension)
}

func TestChainPanicsOnDimensionMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewChain(stubProvider{name: "a", dim: 10}, stubProvider{name: "b", dim: 20})
	})
}
