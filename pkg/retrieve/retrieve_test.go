package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/graphstore/memtest"
	"github.com/lexigraph/lexigraph/pkg/session"
)

func TestExtractTermsFiltersStopWords(t *testing.T) {
	terms := ExtractTerms("What is the rent amount?", session.LanguageEnglish)
	assert.NotContains(t, terms, "what")
	assert.NotContains(t, terms, "is")
	assert.Contains(t, terms, "rent")
}

func TestExtractTermsGeneralContentQuery(t *testing.T) {
	terms := ExtractTerms("what is in the file", session.LanguageEnglish)
	assert.ElementsMatch(t, []string{"عقد", "مستند", "محتوى"}, terms)
}

func TestExtractTermsFallsBackToFullQuery(t *testing.T) {
	// every word is a stop word, so the whole cleaned query is the one term
	terms := ExtractTerms("who are you", session.LanguageEnglish)
	assert.Equal(t, []string{"who are you"}, terms)
}

func TestRetrieveEmptySessionIsEmpty(t *testing.T) {
	store := memtest.New()
	r := New(store, embed.Local{})

	pack, err := r.Retrieve(context.Background(), "s1", "what is the rent", session.LanguageEnglish)
	require.NoError(t, err)
	assert.True(t, pack.Empty())
}

func TestRetrieveFindsGraphMatchAndExpandsOneHop(t *testing.T) {
	store := memtest.New()
	ctx := context.Background()

	_, err := store.Upsert(ctx, graphstore.Node{SessionID: "s1", Label: "Entity", Key: "acme", Props: map[string]any{"name": "Acme Corp", "language": "en"}})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, graphstore.Node{SessionID: "s1", Label: "Fact", Key: "f1", Props: map[string]any{"content": "Acme Corp shall pay rent", "language": "en"}})
	require.NoError(t, err)
	require.NoError(t, store.Relate(ctx, graphstore.Edge{SessionID: "s1", Type: "ABOUT", SrcLabel: "Fact", SrcKey: "f1", DstLabel: "Entity", DstKey: "acme"}))
	_, err = store.Upsert(ctx, graphstore.Node{SessionID: "s1", Label: "Entity", Key: "beta", Props: map[string]any{"name": "Beta LLC", "language": "en"}})
	require.NoError(t, err)
	require.NoError(t, store.Relate(ctx, graphstore.Edge{SessionID: "s1", Type: "ABOUT", SrcLabel: "Fact", SrcKey: "f1", DstLabel: "Entity", DstKey: "beta"}))

	r := New(store, embed.Local{})
	pack, err := r.Retrieve(ctx, "s1", "tell me about acme", session.LanguageEnglish)
	require.NoError(t, err)
	assert.False(t, pack.Empty())
	assert.NotEmpty(t, pack.GraphMatches)
	// beta matches no term and is reached only through f1's edge
	require.Len(t, pack.Expanded, 1)
	assert.Equal(t, "beta", pack.Expanded[0].Key)
}

func TestRetrieveGeneralContentQueryReturnsAllChunksRegardlessOfSimilarity(t *testing.T) {
	store := memtest.New()
	ctx := context.Background()
	embedder := embed.Local{}

	unrelatedVec, err := embedder.Embed(ctx, []string{"zzzz completely unrelated filler text"})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, graphstore.Node{
		SessionID: "s1", Label: "DocumentChunk", Key: "c1",
		Props: map[string]any{"content": "zzzz completely unrelated filler text", "language": "en", "embedding": unrelatedVec[0]},
	})
	require.NoError(t, err)

	r := New(store, embedder)
	pack, err := r.Retrieve(ctx, "s1", "what is in the file", session.LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, pack.TopChunks, 1, "a general content query must surface every chunk regardless of similarity")
}

func TestRetrieveScoresChunksBySimilarity(t *testing.T) {
	store := memtest.New()
	ctx := context.Background()
	embedder := embed.Local{}

	vec, err := embedder.Embed(ctx, []string{"the tenant shall pay monthly rent to the landlord"})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, graphstore.Node{
		SessionID: "s1", Label: "DocumentChunk", Key: "c1",
		Props: map[string]any{"content": "the tenant shall pay monthly rent to the landlord", "language": "en", "embedding": vec[0]},
	})
	require.NoError(t, err)

	r := New(store, embedder)
	pack, err := r.Retrieve(ctx, "s1", "the tenant shall pay monthly rent to the landlord", session.LanguageEnglish)
	require.NoError(t, err)
	require.NotEmpty(t, pack.TopChunks)
	assert.InDelta(t, 1.0, pack.TopChunks[0].Similarity, 1e-6)
}
