// Package ingest orchestrates PDF -> chunks -> language-tag -> extract ->
// graph write, grounded on the prior codebase's pkg/graph/process.go
// pipeline shape but made strictly sequential per session-independent
// rate-limited extract calls instead of the prior codebase's per-file
// errgroup.SetLimit fan-out, since every extract call shares one global
// rate limit regardless of which ingest issued it.
package ingest

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lexigraph/lexigraph/pkg/chunk"
	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/genmodel"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/lang"
	"github.com/lexigraph/lexigraph/pkg/session"
)

// EventPublisher is a best-effort, non-blocking observability side-channel
// for ingest lifecycle events. It is not on the ingestion critical path:
// Ingest is a synchronous call, so no step here may wait on message
// delivery.
type EventPublisher interface {
	Publish(eventType string, payload map[string]any)
}

// noopEvents discards every event; used when no publisher is wired.
type noopEvents struct{}

func (noopEvents) Publish(string, map[string]any) {}

// Result is the summary the caller receives after Ingest returns.
type Result struct {
	BatchID               string
	ChunksCreated         int
	NodesCreated          int
	RelationshipsCreated  int
	LanguageDistribution  map[session.Language]int
	ChunksFailedExtract   int
	ChunksFailedEmbedding int
}

// Ingestor is the concrete implementation of the ingest pipeline.
type Ingestor struct {
	Graph    graphstore.Store
	Embedder embed.Provider
	Model    genmodel.Model
	Limiter  *rate.Limiter
	Events   EventPublisher
	Barrier  *session.Barrier

	Splitter *chunk.Splitter
}

// New builds an Ingestor. minInterval is GEN_EXTRACT_MIN_INTERVAL_MS from
// configuration; it is shared across every session, since concurrent
// ingests for different sessions share one global rate limiter. barrier is
// the shared session admission/cancellation registry also handed to
// pkg/answer, so a session delete aborts an in-flight ingest the same way
// it aborts an in-flight answer.
func New(graph graphstore.Store, embedder embed.Provider, model genmodel.Model, minInterval time.Duration, events EventPublisher, barrier *session.Barrier) *Ingestor {
	if events == nil {
		events = noopEvents{}
	}
	limit := rate.Every(minInterval)
	return &Ingestor{
		Graph:    graph,
		Embedder: embedder,
		Model:    model,
		Limiter:  rate.NewLimiter(limit, 1),
		Events:   events,
		Barrier:  barrier,
		Splitter: chunk.New(),
	}
}

// Ingest runs the full pipeline for one uploaded PDF. Chunk processing is
// strictly sequential because every extract call shares one rate limiter;
// within one chunk, the node upserts for its extraction result run
// concurrently via errgroup (see persistExtraction), and the chunk's
// embedding is a single synchronous Embed call after that.
func (in *Ingestor) Ingest(ctx context.Context, sessionID, sourceFile, pdfPath string) (Result, error) {
	ctx, leave, err := in.Barrier.Enter(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	defer leave()

	batchID, err := gonanoid.New()
	if err != nil {
		return Result{}, fmt.Errorf("ingest: batch id: %w", err)
	}

	pages, err := extractPages(pdfPath)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: extract pdf: %w", err)
	}

	result := Result{
		BatchID:              batchID,
		LanguageDistribution: map[session.Language]int{},
	}

	docKey := Normalize(sourceFile)
	if _, err := in.Graph.Upsert(ctx, graphstore.Node{
		SessionID: sessionID, Label: "Document", Key: docKey,
		Props: map[string]any{
			"title":         sourceFile,
			"document_type": "pdf",
			"upload_date":   time.Now().UTC().Format(time.RFC3339),
			"language":      "",
		},
	}); err != nil {
		return Result{}, fmt.Errorf("ingest: upsert document: %w", err)
	}
	result.NodesCreated++

	in.Events.Publish("batch_started", map[string]any{"session_id": sessionID, "batch_id": batchID, "source_file": sourceFile})

	firstChunkSucceeded := false
	for window := range in.Splitter.Pages(sourceFile, pages) {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("ingest: %w", session.Cause(ctx, ctx.Err()))
		default:
		}

		windowLang := lang.Tag(window.Content)
		result.LanguageDistribution[windowLang]++

		extraction, extractErr := in.extractChunk(ctx, window.Content, windowLang)
		if extractErr != nil {
			result.ChunksFailedExtract++
		}

		nodes, rels, err := in.persistExtraction(ctx, sessionID, docKey, extraction, windowLang)
		if err != nil {
			return result, fmt.Errorf("ingest: persist extraction: %w", err)
		}
		result.NodesCreated += nodes
		result.RelationshipsCreated += rels

		vec, err := in.Embedder.Embed(ctx, []string{window.Content})
		if err != nil || len(vec) == 0 {
			result.ChunksFailedEmbedding++
		} else {
			if _, err := in.Graph.Upsert(ctx, graphstore.Node{
				SessionID: sessionID, Label: "DocumentChunk", Key: chunkKey(sourceFile, window.Page, window.Offset),
				Props: map[string]any{
					"source_file": window.SourceFile,
					"page":        int64(window.Page),
					"offset":      int64(window.Offset),
					"content":     window.Content,
					"language":    string(windowLang),
					"embedding":   vec[0],
				},
			}); err != nil {
				return result, fmt.Errorf("ingest: persist chunk: %w", err)
			}
			result.ChunksCreated++
			result.NodesCreated++
			firstChunkSucceeded = true
			in.Events.Publish("chunk_extracted", map[string]any{
				"session_id": sessionID, "batch_id": batchID,
				"page": window.Page, "language": string(windowLang),
			})
		}
	}

	if !firstChunkSucceeded && len(pages) > 0 {
		return result, fmt.Errorf("ingest: %w: no chunk succeeded", ErrIngestFailed)
	}

	// resolve the Document's language from its chunks; Upsert's merge rule
	// makes the result independent of the order languages are applied in.
	for l := range result.LanguageDistribution {
		if _, err := in.Graph.Upsert(ctx, graphstore.Node{
			SessionID: sessionID, Label: "Document", Key: docKey,
			Props: map[string]any{"language": string(l)},
		}); err != nil {
			return result, fmt.Errorf("ingest: resolve document language: %w", err)
		}
	}

	in.Events.Publish("batch_completed", map[string]any{
		"session_id": sessionID, "batch_id": batchID,
		"chunks_created": result.ChunksCreated, "nodes_created": result.NodesCreated,
	})

	return result, nil
}

func chunkKey(sourceFile string, page, offset int) string {
	return fmt.Sprintf("%s#%d:%d", sourceFile, page, offset)
}

// extractChunk waits for the shared rate limiter, invokes the generative
// model in extract mode, and repairs+validates its response, falling back
// to the deterministic extractor on any failure.
func (in *Ingestor) extractChunk(ctx context.Context, text string, chunkLang session.Language) (ExtractionResult, error) {
	if err := in.Limiter.Wait(ctx); err != nil {
		return fallbackExtract(text), err
	}

	prompt := buildExtractPrompt(text, chunkLang)
	raw, err := in.Model.Extract(ctx, "extraction_result", ExtractionSchema(), prompt)
	if err != nil {
		return fallbackExtract(text), err
	}

	result, err := parseExtraction(raw)
	if err != nil {
		return fallbackExtract(text), err
	}
	return result, nil
}

// buildExtractPrompt prepends Arabic-legal-terminology guidance for ar and
// mixed chunks.
func buildExtractPrompt(text string, chunkLang session.Language) string {
	base := "Extract legal entities, facts, legal concepts, case references, and relationships from the following text. " +
		"Return only the fields defined by the response schema.\n\nText:\n" + text
	if chunkLang == session.LanguageArabic || chunkLang == session.LanguageMixed {
		return "This text may be in Arabic. Preserve entity and term names in their original script; do not translate them.\n\n" + base
	}
	return base
}

// persistExtraction upserts every entity/fact/concept/case and relates
// them, plus links the owning Document via CONTAINS/MENTIONS. Embedding
// batching for names used only in upsert keys is unnecessary; this
// function does no embedding work.
func (in *Ingestor) persistExtraction(ctx context.Context, sessionID, docKey string, result ExtractionResult, chunkLang session.Language) (nodes, rels int, err error) {
	g, gCtx := errgroup.WithContext(ctx)
	type keyed struct {
		label string
		key   string
	}
	keysCh := make(chan keyed, len(result.Entities)+len(result.Facts)+len(result.Concepts)+len(result.Cases))

	for _, e := range result.Entities {
		g.Go(func() error {
			key := Normalize(e.Name)
			if key == "" {
				return nil
			}
			if _, err := in.Graph.Upsert(gCtx, graphstore.Node{
				SessionID: sessionID, Label: "Entity", Key: key,
				Props: map[string]any{"name": e.Name, "entity_type": e.EntityType, "description": e.Description, "language": string(chunkLang)},
			}); err != nil {
				return err
			}
			keysCh <- keyed{"Entity", key}
			return nil
		})
	}
	for _, f := range result.Facts {
		g.Go(func() error {
			key := Normalize(f.Content)
			if key == "" {
				return nil
			}
			if _, err := in.Graph.Upsert(gCtx, graphstore.Node{
				SessionID: sessionID, Label: "Fact", Key: key,
				Props: map[string]any{"content": f.Content, "fact_type": f.FactType, "confidence": f.Confidence, "language": string(chunkLang)},
			}); err != nil {
				return err
			}
			keysCh <- keyed{"Fact", key}
			return nil
		})
	}
	for _, c := range result.Concepts {
		g.Go(func() error {
			key := Normalize(c.Term)
			if key == "" {
				return nil
			}
			if _, err := in.Graph.Upsert(gCtx, graphstore.Node{
				SessionID: sessionID, Label: "LegalConcept", Key: key,
				Props: map[string]any{"term": c.Term, "definition": c.Definition, "category": c.Category, "language": string(chunkLang)},
			}); err != nil {
				return err
			}
			keysCh <- keyed{"LegalConcept", key}
			return nil
		})
	}
	for _, cs := range result.Cases {
		g.Go(func() error {
			key := Normalize(cs.CaseNumber)
			if key == "" {
				return nil
			}
			if _, err := in.Graph.Upsert(gCtx, graphstore.Node{
				SessionID: sessionID, Label: "Case", Key: key,
				Props: map[string]any{
					"case_number": cs.CaseNumber, "case_name": cs.CaseName,
					"court": cs.Court, "jurisdiction": cs.Jurisdiction, "status": cs.Status,
					"language": string(chunkLang),
				},
			}); err != nil {
				return err
			}
			keysCh <- keyed{"Case", key}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	// edgeProps is set on every edge this chunk's extraction produces:
	// session_id so a Relate never needs a post-filter to stay scoped, and
	// language as the originating chunk's language (open question (b)).
	edgeProps := map[string]any{"session_id": sessionID, "language": string(chunkLang)}

	close(keysCh)
	for k := range keysCh {
		nodes++
		switch k.label {
		case "Entity":
			if err := in.Graph.Relate(ctx, graphstore.Edge{
				SessionID: sessionID, Type: string(session.RelMentions),
				SrcLabel: "Document", SrcKey: docKey, DstLabel: "Entity", DstKey: k.key,
				Props: edgeProps,
			}); err != nil {
				return nodes, rels, err
			}
			rels++
		case "Fact":
			if err := in.Graph.Relate(ctx, graphstore.Edge{
				SessionID: sessionID, Type: string(session.RelContains),
				SrcLabel: "Document", SrcKey: docKey, DstLabel: "Fact", DstKey: k.key,
				Props: edgeProps,
			}); err != nil {
				return nodes, rels, err
			}
			rels++
		}
	}

	for _, r := range result.Relations {
		srcKey := Normalize(r.SrcName)
		dstKey := Normalize(r.DstName)
		if srcKey == "" || dstKey == "" {
			continue
		}
		if err := in.Graph.Relate(ctx, graphstore.Edge{
			SessionID: sessionID, Type: r.Type,
			SrcLabel: r.SrcLabel, SrcKey: srcKey, DstLabel: r.DstLabel, DstKey: dstKey,
			Props: edgeProps,
		}); err != nil {
			continue // a relation Relate rejects (e.g. an unknown label or relationship type) is skipped, not fatal
		}
		rels++
	}

	return nodes, rels, nil
}
