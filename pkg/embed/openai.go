package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// OpenAI embeds text via an OpenAI-compatible embeddings endpoint, grounded
// on the prior codebase's pkg/ai/openai/embedding.go client: a bounded semaphore
// caps in-flight requests regardless of caller concurrency.
type OpenAI struct {
	client    openai.Client
	model     string
	dimension int
	inflight  *semaphore.Weighted
}

// NewOpenAI builds an OpenAI embedding provider. baseURL may be empty to
// use the default OpenAI endpoint, or set to point at a compatible gateway.
func NewOpenAI(apiKey, baseURL, model string, dimension, maxInflight int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
		inflight:  semaphore.NewWeighted(int64(maxInflight)),
	}
}

func (o *OpenAI) Name() string   { return "openai:" + o.model }
func (o *OpenAI) Dimension() int { return o.dimension }

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := o.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.inflight.Release(1)

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", idx)
		}
		vec := make([]float32, 0, o.dimension)
		for _, v := range d.Embedding {
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
		out[idx] = vec
	}
	return out, nil
}
