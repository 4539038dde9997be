package answer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/pkg/embed"
	"github.com/lexigraph/lexigraph/pkg/genmodel"
	"github.com/lexigraph/lexigraph/pkg/genmodel/gentest"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/graphstore/memtest"
	"github.com/lexigraph/lexigraph/pkg/retrieve"
	"github.com/lexigraph/lexigraph/pkg/session"
)

type fakeHistory struct {
	mu   sync.Mutex
	msgs []session.Message
}

func (f *fakeHistory) Append(_ context.Context, msg session.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, sessionID string) ([]session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Message
	for _, m := range f.msgs {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestAnswerNoDocumentShortCircuits(t *testing.T) {
	hist := &fakeHistory{}
	graph := memtest.New()
	retriever := retrieve.New(graph, embed.Local{})
	model := &gentest.Model{}
	a := New(hist, retriever, model, 4000, session.NewBarrier())

	ch, err := a.Answer(context.Background(), "sess-1", "what does the lease say?")
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, "content", events[0].Type)
	assert.Equal(t, "done", events[1].Type)
	assert.Empty(t, model.AnswerCalls, "model must not be invoked when there is nothing to answer from")

	msgs, _ := hist.Recent(context.Background(), "sess-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
}

func embedText(t *testing.T, text string) []float32 {
	t.Helper()
	vecs, err := embed.Local{}.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	return vecs[0]
}

func TestAnswerStreamsGeneratedReplyAndAppendsMessages(t *testing.T) {
	hist := &fakeHistory{}
	graph := memtest.New()
	_, err := graph.Upsert(context.Background(), graphstore.Node{
		SessionID: "sess-1", Label: "DocumentChunk", Key: "lease.pdf#1:0",
		Props: map[string]any{
			"content": "Acme Corp lease terms", "source_file": "lease.pdf",
			"page": int64(1), "language": "en",
			"embedding": embedText(t, "Acme Corp lease terms"),
		},
	})
	require.NoError(t, err)

	retriever := retrieve.New(graph, embed.Local{})
	model := &gentest.Model{AnswerChunks: []string{"The ", "lease ", "is valid."}}
	a := New(hist, retriever, model, 4000, session.NewBarrier())

	ch, err := a.Answer(context.Background(), "sess-1", "Acme Corp lease terms")
	require.NoError(t, err)
	events := drain(t, ch)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "done", last.Type)
	assert.NotEmpty(t, last.Sources)

	msgs, _ := hist.Recent(context.Background(), "sess-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "The lease is valid.", msgs[1].Content)
	assert.False(t, msgs[1].Truncated)
	require.Len(t, model.AnswerCalls, 1)
}

func TestAnswerTruncatesOnMidStreamError(t *testing.T) {
	hist := &fakeHistory{}
	graph := memtest.New()
	_, err := graph.Upsert(context.Background(), graphstore.Node{
		SessionID: "sess-1", Label: "DocumentChunk", Key: "k1",
		Props: map[string]any{
			"content": "widget contract text", "source_file": "f.pdf", "page": int64(1), "language": "en",
			"embedding": embedText(t, "widget contract text"),
		},
	})
	require.NoError(t, err)

	retriever := retrieve.New(graph, embed.Local{})
	model := &erroringModel{firstChunk: "partial answer"}
	a := New(hist, retriever, model, 4000, session.NewBarrier())

	ch, err := a.Answer(context.Background(), "sess-1", "widget contract text")
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)

	msgs, _ := hist.Recent(context.Background(), "sess-1")
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Truncated)
	assert.Equal(t, "partial answer", msgs[1].Content)
}

func TestAnswerSerializesConcurrentCallsForSameSession(t *testing.T) {
	hist := &fakeHistory{}
	graph := memtest.New()
	_, err := graph.Upsert(context.Background(), graphstore.Node{
		SessionID: "sess-shared", Label: "DocumentChunk", Key: "k1",
		Props: map[string]any{
			"content": "hello world", "source_file": "f.pdf", "page": int64(1), "language": "en",
			"embedding": embedText(t, "hello world"),
		},
	})
	require.NoError(t, err)

	retriever := retrieve.New(graph, embed.Local{})
	model := &trackingModel{}
	a := New(hist, retriever, model, 4000, session.NewBarrier())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := a.Answer(context.Background(), "sess-shared", "hello world")
			require.NoError(t, err)
			drain(t, ch)
		}()
	}
	wg.Wait()

	assert.False(t, model.overlapped.Load(), "concurrent Answer calls on the same session must never run generation concurrently")
	msgs, _ := hist.Recent(context.Background(), "sess-shared")
	assert.Len(t, msgs, 10) // 5 user + 5 assistant turns, none interleaved
}

func TestAnswerRejectsBarredSession(t *testing.T) {
	hist := &fakeHistory{}
	graph := memtest.New()
	retriever := retrieve.New(graph, embed.Local{})
	model := &gentest.Model{}
	barrier := session.NewBarrier()
	barrier.Bar("sess-1")
	a := New(hist, retriever, model, 4000, barrier)

	_, err := a.Answer(context.Background(), "sess-1", "what does the lease say?")
	require.ErrorIs(t, err, session.ErrSessionGone)
}

func TestClipHistoryKeepsNewestWithinBudget(t *testing.T) {
	msgs := []session.Message{
		{ID: "1", Content: "old", TokenCount: 50},
		{ID: "2", Content: "mid", TokenCount: 50},
		{ID: "3", Content: "new", TokenCount: 50},
	}
	kept := clipHistory(msgs, 80)
	require.Len(t, kept, 1)
	assert.Equal(t, "3", kept[0].ID)
}

func TestClipHistoryKeepsAtLeastNewestEvenIfOverBudget(t *testing.T) {
	msgs := []session.Message{{ID: "1", TokenCount: 5000}}
	kept := clipHistory(msgs, 10)
	require.Len(t, kept, 1)
}

type erroringModel struct {
	firstChunk string
}

func (erroringModel) Extract(context.Context, string, map[string]any, string, ...genmodel.GenerateOption) (string, error) {
	return "{}", nil
}

func (m erroringModel) Answer(ctx context.Context, _ []genmodel.ChatMessage, _ ...genmodel.GenerateOption) (<-chan genmodel.StreamEvent, error) {
	out := make(chan genmodel.StreamEvent, 2)
	go func() {
		defer close(out)
		out <- genmodel.StreamEvent{Type: "content", Content: m.firstChunk}
		out <- genmodel.StreamEvent{Type: "error", Err: assert.AnError}
	}()
	return out, nil
}

type trackingModel struct {
	active     atomic.Int32
	overlapped atomic.Bool
}

func (*trackingModel) Extract(context.Context, string, map[string]any, string, ...genmodel.GenerateOption) (string, error) {
	return "{}", nil
}

func (m *trackingModel) Answer(ctx context.Context, _ []genmodel.ChatMessage, _ ...genmodel.GenerateOption) (<-chan genmodel.StreamEvent, error) {
	if m.active.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	out := make(chan genmodel.StreamEvent, 2)
	go func() {
		defer close(out)
		time.Sleep(5 * time.Millisecond)
		out <- genmodel.StreamEvent{Type: "content", Content: "ok"}
		out <- genmodel.StreamEvent{Type: "done"}
		m.active.Add(-1)
	}()
	return out, nil
}
