// Package embed provides text embedding with automatic fallback across a
// priority list of providers, generalizing the prior codebase's
// pkg/ai/{openai,ollama}/embedding.go clients into a single narrow
// EmbeddingProvider contract plus a hash-based local provider that never
// depends on an external service.
package embed

import (
	"context"
	"fmt"
	"math"
)

// Provider produces fixed-dimension embeddings for text.
type Provider interface {
	// Embed returns one vector per input, in order. It never returns a
	// partial result: either every input is embedded or an error is
	// returned.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the length of every vector this provider returns.
	Dimension() int
	// Name identifies the provider for logging and for the shape-invariant
	// check in Chain.
	Name() string
}

// Similarity returns the cosine similarity of two equal-length vectors. It
// returns 0 for a zero-length or mismatched-length input, matching the
// safe-default used by the local fallback provider.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// Chain tries providers in priority order and falls back to the next one
// when a provider errors, matching the ordering configured via
// EMBED_MODEL_PRIORITY. A Chain always succeeds because its last entry
// should be a Local provider, which cannot fail.
type Chain struct {
	providers []Provider
}

// NewChain builds a fallback chain. It panics if given no providers or if
// the providers disagree on Dimension, since a session's stored chunks
// must all be comparable to each other.
func NewChain(providers ...Provider) *Chain {
	if len(providers) == 0 {
		panic("embed: NewChain requires at least one provider")
	}
	dim := providers[0].Dimension()
	for _, p := range providers[1:] {
		if p.Dimension() != dim {
			panic(fmt.Sprintf("embed: provider %q dimension %d does not match chain dimension %d", p.Name(), p.Dimension(), dim))
		}
	}
	return &Chain{providers: providers}
}

func (c *Chain) Dimension() int { return c.providers[0].Dimension() }
func (c *Chain) Name() string   { return "chain" }

// Embed tries each provider in order, returning the first successful
// result. The context deadline, if any, is shared across every attempt.
func (c *Chain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		out, err := p.Embed(ctx, texts)
		if err == nil {
			return out, nil
		}
		lastErr = fmt.Errorf("%s: %w", p.Name(), err)
	}
	return nil, fmt.Errorf("embed: all providers failed: %w", lastErr)
}
