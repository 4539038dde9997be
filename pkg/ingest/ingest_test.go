package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/genmodel/gentest"
	"github.com/lexigraph/lexigraph/pkg/graphstore/memtest"
	"github.com/lexigraph/lexigraph/pkg/session"
)

func withFakePages(t *testing.T, pages []string) {
	t.Helper()
	orig := extractPages
	extractPages = func(string) ([]string, error) { return pages, nil }
	t.Cleanup(func() { extractPages = orig })
}

func extractionJSON(t *testing.T, r ExtractionResult) string {
	t.Helper()
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	return string(raw)
}

func TestIngestPersistsChunksAndEntities(t *testing.T) {
	withFakePages(t, []string{"Acme Corp signed a lease with Beta LLC."})

	extraction := ExtractionResult{
		Entities: []ExtractedEntity{{Name: "Acme Corp", EntityType: "ORG"}, {Name: "Beta LLC", EntityType: "ORG"}},
		Facts:    []ExtractedFact{{Content: "Acme Corp signed a lease with Beta LLC.", FactType: "assertion", Confidence: 0.9}},
	}
	model := &gentest.Model{ExtractResponse: extractionJSON(t, extraction)}
	graph := memtest.New()

	ing := New(graph, embed.Local{}, model, time.Millisecond, nil, session.NewBarrier())
	result, err := ing.Ingest(context.Background(), "sess-1", "lease.pdf", "/tmp/lease.pdf")

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)
	assert.NotEmpty(t, result.BatchID)
	assert.Zero(t, result.ChunksFailedExtract)

	chunks, err := graph.ListChunks(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	matches, err := graph.MatchByTerms(context.Background(), "sess-1", []string{"Entity"}, []string{"Acme"}, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
}

func TestIngestIsUpsertIdempotent(t *testing.T) {
	withFakePages(t, []string{"Acme Corp is a party."})

	extraction := ExtractionResult{
		Entities: []ExtractedEntity{{Name: "Acme Corp", EntityType: "ORG"}},
	}
	model := &gentest.Model{ExtractResponse: extractionJSON(t, extraction)}
	graph := memtest.New()
	ing := New(graph, embed.Local{}, model, time.Millisecond, nil, session.NewBarrier())

	_, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.NoError(t, err)
	_, err = ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.NoError(t, err)

	matches, err := graph.MatchByTerms(context.Background(), "sess-1", []string{"Entity"}, []string{"Acme"}, "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1, "re-ingesting the same entity must upsert, not duplicate")
}

func TestIngestFallsBackOnMalformedExtraction(t *testing.T) {
	withFakePages(t, []string{"Some Legal Text About Widgets."})

	model := &gentest.Model{ExtractErr: assert.AnError}
	graph := memtest.New()
	ing := New(graph, embed.Local{}, model, time.Millisecond, nil, session.NewBarrier())

	result, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksFailedExtract)
	assert.Equal(t, 1, result.ChunksCreated, "embedding still computed and stored for a chunk that failed extraction")

	matches, err := graph.MatchByTerms(context.Background(), "sess-1", []string{"Entity"}, []string{"Legal"}, "", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "fallback extraction still yields capitalised-span entities")
}

func TestIngestFailsWhenNoChunkSucceeds(t *testing.T) {
	withFakePages(t, []string{"first page", "second page"})

	model := &gentest.Model{ExtractResponse: "{}"}
	graph := memtest.New()
	failingEmbedder := failEmbedder{}
	ing := New(graph, failingEmbedder, model, time.Millisecond, nil, session.NewBarrier())

	result, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.ErrorIs(t, err, ErrIngestFailed)
	assert.Zero(t, result.ChunksCreated)
}

func TestIngestRejectsBarredSession(t *testing.T) {
	withFakePages(t, []string{"first page"})

	model := &gentest.Model{ExtractResponse: "{}"}
	graph := memtest.New()
	barrier := session.NewBarrier()
	barrier.Bar("sess-1")
	ing := New(graph, embed.Local{}, model, time.Millisecond, nil, barrier)

	_, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.ErrorIs(t, err, session.ErrSessionGone)
}

func TestIngestExtractCallsAreRateLimited(t *testing.T) {
	withFakePages(t, []string{"first page clause", "second page clause", "third page clause"})

	model := &gentest.Model{ExtractResponse: "{}"}
	graph := memtest.New()
	ing := New(graph, embed.Local{}, model, 10*time.Millisecond, nil, session.NewBarrier())

	start := time.Now()
	_, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.NoError(t, err)
	elapsed := time.Since(start)
	require.Len(t, model.ExtractCalls, 3)
	// three extract calls at a 10ms minimum interval wait out two intervals
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestIngestEmitsLifecycleEvents(t *testing.T) {
	withFakePages(t, []string{"Acme Corp text."})

	model := &gentest.Model{ExtractResponse: "{}"}
	graph := memtest.New()
	events := &countingEvents{}
	ing := New(graph, embed.Local{}, model, time.Millisecond, events, session.NewBarrier())

	_, err := ing.Ingest(context.Background(), "sess-1", "doc.pdf", "/tmp/doc.pdf")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, events.count.Load(), int32(3)) // batch_started, chunk_extracted, batch_completed
}

type failEmbedder struct{}

func (failEmbedder) Name() string   { return "fail" }
func (failEmbedder) Dimension() int { return 1 }
func (failEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, assert.AnError
}

type countingEvents struct {
	count atomic.Int32
}

func (c *countingEvents) Publish(string, map[string]any) { c.count.Add(1) }
