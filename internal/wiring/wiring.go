// Package wiring builds the process-wide singletons this service needs —
// one EmbeddingProvider, one GraphStore pool, one GenerativeModel client
// (the extract rate limiter is built by ingest.New) — so cmd/server and
// cmd/worker share a single
// construction path instead of duplicating the adapter switch inline in
// internal/server/middleware/context.go.
package wiring

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/genmodel"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
)

const maxInflightEmbedRequests = 15

// BuildEmbedder assembles the fallback chain named by
// cfg.EmbedModelPriority, always terminating in the local-hash provider so
// the chain can never fail outright.
func BuildEmbedder(cfg config.Config) embed.Provider {
	providers := make([]embed.Provider, 0, len(cfg.EmbedModelPriority)+1)
	for _, name := range cfg.EmbedModelPriority {
		if model, ok := strings.CutPrefix(name, "ollama:"); ok {
			o, err := embed.NewOllama(cfg.OllamaBaseURL, model, embed.LocalDimension, maxInflightEmbedRequests)
			if err != nil {
				continue
			}
			providers = append(providers, o)
			continue
		}
		providers = append(providers, embed.NewOpenAI(cfg.GenModelKey, cfg.GenBaseURL, name, embed.LocalDimension, maxInflightEmbedRequests))
	}
	providers = append(providers, embed.Local{})
	return embed.NewChain(providers...)
}

// BuildGenModel selects the OpenAI-compatible or Ollama-served generative
// model client. GEN_BASE_URL pointing at an Ollama-shaped endpoint is not
// auto-detected; instead, any cfg.EmbedModelPriority entry with the ollama:
// prefix selects the Ollama client for generation too. With no such entry
// the OpenAI-compatible client is used.
func BuildGenModel(cfg config.Config) (genmodel.Model, error) {
	for _, name := range cfg.EmbedModelPriority {
		if strings.HasPrefix(name, "ollama:") {
			return genmodel.NewOllama(cfg.OllamaBaseURL, cfg.GenExtractModel, cfg.GenAnswerModel)
		}
	}
	return genmodel.NewOpenAI(cfg.GenModelKey, cfg.GenBaseURL, cfg.GenExtractModel, cfg.GenAnswerModel), nil
}

// BuildGraphStore opens the Neo4j driver and ensures the indices every
// query in pkg/graphstore depends on exist before the first request lands.
func BuildGraphStore(ctx context.Context, cfg config.Config) (graphstore.Store, error) {
	store, err := graphstore.NewNeo4j(ctx, cfg.GraphURI, cfg.GraphUser, cfg.GraphPassword, cfg.GraphDatabase)
	if err != nil {
		return nil, fmt.Errorf("wiring: connect graph store: %w", err)
	}
	if err := store.EnsureIndices(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("wiring: ensure graph indices: %w", err)
	}
	return store, nil
}
