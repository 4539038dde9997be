package embed

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// Ollama embeds text via a local or remote Ollama server, modeled on the
// prior codebase's pkg/ai/ollama/embedding.go client.
type Ollama struct {
	client    *api.Client
	model     string
	dimension int
	inflight  *semaphore.Weighted
}

// NewOllama builds an Ollama embedding provider against baseURL (e.g.
// http://localhost:11434).
func NewOllama(baseURL, model string, dimension, maxInflight int) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}
	return &Ollama{
		client:    api.NewClient(u, nil),
		model:     model,
		dimension: dimension,
		inflight:  semaphore.NewWeighted(int64(maxInflight)),
	}, nil
}

func (o *Ollama) Name() string   { return "ollama:" + o.model }
func (o *Ollama) Dimension() int { return o.dimension }

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := o.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.inflight.Release(1)

	out := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.model, Input: t})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		if len(res.Embeddings) == 0 {
			return nil, fmt.Errorf("ollama embed: empty response for input %d", i)
		}
		vec := make([]float32, 0, o.dimension)
		for _, v := range res.Embeddings[0] {
			if len(vec) >= o.dimension {
				break
			}
			vec = append(vec, float32(v))
		}
		if len(vec) < o.dimension {
			padded := make([]float32, o.dimension)
			copy(padded, vec)
			vec = padded
		}
		out[i] = vec
	}
	return out, nil
}
