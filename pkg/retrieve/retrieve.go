// Package retrieve implements the hybrid semantic + graph retrieval pass,
// grounded on original_source/retrieval.py's MultilingualRetrievalService:
// a semantic chunk pass (every chunk for a general content-of-file query,
// similarity-thresholded otherwise), a term-filtered graph
// traversal pass, and a one-hop relationship expansion, run concurrently
// and merged deterministically.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/session"
)

const (
	// generalContentThreshold is the low bar chunks must clear to be
	// treated as broadly-relevant background.
	generalContentThreshold = 0.2
	// topKThreshold is the higher bar for a chunk to be promoted into the
	// primary answer context rather than background.
	topKThreshold = 0.5

	graphLimit  = 10
	expandLimit = 10
)

// graphLabels are the non-chunk node types the graph pass searches.
var graphLabels = []string{"Entity", "Fact", "LegalConcept", "Case", "Document"}

// ScoredChunk pairs a DocumentChunk match with its cosine similarity to the
// query embedding.
type ScoredChunk struct {
	graphstore.Match
	Similarity float64
}

// ContextPack is everything a single Answer call needs to build its
// prompt: the union of the semantic and graph passes, deduplicated and
// deterministically ordered, plus the search terms and query language the
// graph pass used, since the prompt cites both alongside the matches
// themselves.
type ContextPack struct {
	TopChunks        []ScoredChunk
	BackgroundChunks []ScoredChunk
	GraphMatches     []graphstore.Match
	Expanded         []graphstore.Match
	SearchTerms      []string
	QueryLanguage    session.Language
}

// Empty reports whether nothing at all was retrieved, which the Answerer
// uses to short-circuit into the "please upload a document" reply.
func (c ContextPack) Empty() bool {
	return len(c.TopChunks) == 0 && len(c.BackgroundChunks) == 0 &&
		len(c.GraphMatches) == 0 && len(c.Expanded) == 0
}

// Retriever runs the hybrid retrieval pass for one question.
type Retriever struct {
	Graph    graphstore.Store
	Embedder embed.Provider
}

// New builds a Retriever.
func New(graph graphstore.Store, embedder embed.Provider) *Retriever {
	return &Retriever{Graph: graph, Embedder: embedder}
}

// Retrieve runs the semantic and graph passes concurrently, then expands
// the graph pass's hits by one hop, all scoped to sessionID.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, lang session.Language) (ContextPack, error) {
	var (
		topChunks, backgroundChunks []ScoredChunk
		graphMatches                []graphstore.Match
		searchTerms                 []string
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topChunks, backgroundChunks, err = r.semanticPass(gCtx, sessionID, query)
		return err
	})
	g.Go(func() error {
		var err error
		graphMatches, searchTerms, err = r.graphPass(gCtx, sessionID, query, lang)
		return err
	})
	if err := g.Wait(); err != nil {
		return ContextPack{}, fmt.Errorf("retrieve: %w", err)
	}

	expanded, err := r.Graph.ExpandOneHop(ctx, sessionID, graphMatches, expandLimit)
	if err != nil {
		return ContextPack{}, fmt.Errorf("retrieve: expand one hop: %w", err)
	}
	expanded = excludeKeys(expanded, graphMatches)

	return ContextPack{
		TopChunks:        topChunks,
		BackgroundChunks: backgroundChunks,
		GraphMatches:     graphMatches,
		Expanded:         expanded,
		SearchTerms:      searchTerms,
		QueryLanguage:    lang,
	}, nil
}

// semanticPass scores every DocumentChunk against the query embedding. A
// general "what's in this document" query bypasses both thresholds
// entirely: every chunk of the session goes into top regardless of
// similarity, since the set must never be filtered below "all chunks
// exist" for that query shape.
func (r *Retriever) semanticPass(ctx context.Context, sessionID, query string) ([]ScoredChunk, []ScoredChunk, error) {
	chunks, err := r.Graph.ListChunks(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic pass: list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	queryVec, err := r.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, fmt.Errorf("semantic pass: embed query: %w", err)
	}

	general := IsGeneralContentQuery(query)

	var top, background []ScoredChunk
	for _, c := range chunks {
		vec := chunkEmbedding(c)
		if vec == nil {
			continue
		}
		sim := embed.Similarity(queryVec[0], vec)
		switch {
		case general:
			top = append(top, ScoredChunk{Match: c, Similarity: sim})
		case sim >= topKThreshold:
			top = append(top, ScoredChunk{Match: c, Similarity: sim})
		case sim >= generalContentThreshold:
			background = append(background, ScoredChunk{Match: c, Similarity: sim})
		}
	}

	sortScoredChunks(top)
	sortScoredChunks(background)
	return top, background, nil
}

func sortScoredChunks(chunks []ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].Key < chunks[j].Key
	})
}

func chunkEmbedding(m graphstore.Match) []float32 {
	raw, ok := m.Props["embedding"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(v))
		for _, x := range v {
			switch f := x.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

func (r *Retriever) graphPass(ctx context.Context, sessionID, query string, lang session.Language) ([]graphstore.Match, []string, error) {
	terms := ExtractTerms(query, lang)
	if len(terms) == 0 {
		return nil, nil, nil
	}
	languageFilter := ""
	if lang != session.LanguageMixed {
		languageFilter = string(lang)
	}
	matches, err := r.Graph.MatchByTerms(ctx, sessionID, graphLabels, terms, languageFilter, graphLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("graph pass: %w", err)
	}
	return matches, terms, nil
}

func excludeKeys(candidates, exclude []graphstore.Match) []graphstore.Match {
	seen := make(map[string]bool, len(exclude))
	for _, m := range exclude {
		seen[m.Label+"/"+m.Key] = true
	}
	var out []graphstore.Match
	for _, m := range candidates {
		if seen[m.Label+"/"+m.Key] {
			continue
		}
		out = append(out, m)
	}
	return out
}
