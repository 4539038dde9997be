// Package answer implements the streaming Answerer: append the user turn,
// clip history to a token budget, run hybrid retrieval, assemble the
// four-block prompt, stream the generated reply, and append the assistant
// turn with a trailing sources record. The entire operation runs under one
// per-session lock — one answer at a time per session — not just the model
// call, since message append order must equal Answer call serialisation
// order.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lexigraph/lexigraph/pkg/genmodel"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/lang"
	"github.com/lexigraph/lexigraph/pkg/promptpack"
	"github.com/lexigraph/lexigraph/pkg/retrieve"
	"github.com/lexigraph/lexigraph/pkg/session"
)

// answerTemperature is the low sampling temperature used for answer-mode
// generation, favoring grounded, low-variance replies over creativity.
const answerTemperature = 0.2

const noDocumentReplyEnglish = "I don't have any documents or extracted information for this session yet. " +
	"Please upload a PDF and ask again."
const noDocumentReplyArabic = "لا تتوفر لدي حاليًا أي مستندات أو معلومات مستخرجة لهذه الجلسة. " +
	"يرجى تحميل ملف PDF ثم إعادة السؤال."

// History is the message-log dependency Answerer needs: append-only writes
// and a full, chronologically-ordered read for token-budget clipping.
type History interface {
	Append(ctx context.Context, msg session.Message) error
	Recent(ctx context.Context, sessionID string) ([]session.Message, error)
}

// Source is one citation in the trailing sources record. Name carries the
// original display name (e.g. "Acme Corp"), never the casefolded upsert
// key ("acme corp") a graph match's Key field holds.
type Source struct {
	Label      string `json:"label"`
	Key        string `json:"key"`
	Name       string `json:"name,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Page       int    `json:"page,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Event is one increment of an Answer stream. Type "done" carries the
// trailing sources record; "error" carries the failure.
type Event struct {
	Type    string // "content" | "done" | "error"
	Content string
	Sources []Source
	Err     error
}

// Answerer runs the retrieval-and-generation pipeline, one call at a time
// per session.
type Answerer struct {
	History            History
	Retriever          *retrieve.Retriever
	Model              genmodel.Model
	HistoryTokenBudget int
	Barrier            *session.Barrier

	locks *sessionLocks
}

// New builds an Answerer. historyTokenBudget is HISTORY_TOKEN_BUDGET from
// configuration. barrier is the shared session admission/cancellation
// registry also handed to pkg/ingest.
func New(history History, retriever *retrieve.Retriever, model genmodel.Model, historyTokenBudget int, barrier *session.Barrier) *Answerer {
	return &Answerer{
		History:            history,
		Retriever:          retriever,
		Model:              model,
		HistoryTokenBudget: historyTokenBudget,
		Barrier:            barrier,
		locks:              newSessionLocks(),
	}
}

// Answer returns immediately with a stream of Events. The whole pipeline —
// user append through assistant append — runs under sessionID's lock in a
// background goroutine, so two concurrent Answer calls for the same session
// never interleave their appends. It fails synchronously with
// session.ErrSessionGone if sessionID has already been deleted, and the
// goroutine's context is cancelled with that same cause if the session is
// deleted while the pipeline is still running.
func (a *Answerer) Answer(ctx context.Context, sessionID, question string) (<-chan Event, error) {
	if sessionID == "" {
		return nil, errors.New("answer: session id is required")
	}

	opCtx, leave, err := a.Barrier.Enter(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		defer leave()
		a.locks.withLock(sessionID, func() {
			a.run(opCtx, sessionID, question, out)
		})
	}()
	return out, nil
}

func (a *Answerer) run(ctx context.Context, sessionID, question string, out chan<- Event) {
	msgID, err := gonanoid.New()
	if err != nil {
		out <- Event{Type: "error", Err: err}
		return
	}
	userMsg := session.Message{
		ID: msgID, SessionID: sessionID, Role: session.RoleUser,
		Content: question, TokenCount: CountTokens(question), CreatedAt: time.Now().UTC(),
	}
	if err := a.History.Append(ctx, userMsg); err != nil {
		out <- Event{Type: "error", Err: session.Cause(ctx, err)}
		return
	}

	queryLang := lang.Tag(question)

	history, err := a.History.Recent(ctx, sessionID)
	if err != nil {
		out <- Event{Type: "error", Err: session.Cause(ctx, err)}
		return
	}
	history = clipHistory(history, a.HistoryTokenBudget)

	ctxPack, err := a.Retriever.Retrieve(ctx, sessionID, question, queryLang)
	if err != nil {
		out <- Event{Type: "error", Err: session.Cause(ctx, err)}
		return
	}

	if ctxPack.Empty() {
		a.emitNoDocumentReply(sessionID, queryLang, out)
		return
	}

	messages := promptpack.Build(queryLang, ctxPack, history, question)
	sources := buildSources(ctxPack)
	a.emitGenerated(ctx, sessionID, messages, sources, out)
}

// emitNoDocumentReply is the no-document short-circuit: a single fragment,
// no model call, still logged as an assistant turn.
func (a *Answerer) emitNoDocumentReply(sessionID string, queryLang session.Language, out chan<- Event) {
	reply := noDocumentReplyEnglish
	if queryLang == session.LanguageArabic || queryLang == session.LanguageMixed {
		reply = noDocumentReplyArabic
	}
	out <- Event{Type: "content", Content: reply}
	out <- Event{Type: "done"}

	msgID, err := gonanoid.New()
	if err != nil {
		return
	}
	_ = a.History.Append(context.Background(), session.Message{
		ID: msgID, SessionID: sessionID, Role: session.RoleAssistant,
		Content: reply, TokenCount: CountTokens(reply), CreatedAt: time.Now().UTC(),
	})
}

// emitGenerated invokes the model, forwards every fragment, and persists
// the assistant message once generation ends — with a truncation marker if
// the stream errored mid-flight after at least one fragment was emitted.
func (a *Answerer) emitGenerated(ctx context.Context, sessionID string, messages []genmodel.ChatMessage, sources []Source, out chan<- Event) {
	modelStream, err := a.Model.Answer(ctx, messages, genmodel.WithTemperature(answerTemperature))
	if err != nil {
		out <- Event{Type: "error", Err: session.Cause(ctx, err)}
		return
	}

	var assembled string
	truncated := false
	var streamErr error

	for ev := range modelStream {
		switch ev.Type {
		case "content":
			assembled += ev.Content
			out <- Event{Type: "content", Content: ev.Content}
		case "error":
			streamErr = ev.Err
			if assembled != "" {
				truncated = true
			}
		}
	}

	if streamErr != nil && assembled == "" {
		out <- Event{Type: "error", Err: session.Cause(ctx, streamErr)}
		return
	}

	if assembled != "" {
		msgID, idErr := gonanoid.New()
		if idErr == nil {
			_ = a.History.Append(context.Background(), session.Message{
				ID: msgID, SessionID: sessionID, Role: session.RoleAssistant,
				Content: assembled, TokenCount: CountTokens(assembled),
				Truncated: truncated, CreatedAt: time.Now().UTC(),
			})
		}
	}

	out <- Event{Type: "done", Sources: sources}
}

// clipHistory keeps the most recent messages whose cumulative token_count
// stays within budget, always retaining at least the newest message (spec
// §4.7 step 2: clip by cumulative token budget, not by message count).
func clipHistory(msgs []session.Message, budget int) []session.Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	var kept []session.Message
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		total += msgs[i].TokenCount
		if total > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, msgs[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// buildSources derives the trailing sources record from every chunk and
// graph match surfaced in the context pack, citing source_file/page/
// language for chunks and the original display name/entity_type for graph
// matches.
func buildSources(ctx retrieve.ContextPack) []Source {
	var out []Source
	for _, c := range ctx.TopChunks {
		out = append(out, chunkSource(c.Match))
	}
	for _, c := range ctx.BackgroundChunks {
		out = append(out, chunkSource(c.Match))
	}
	for _, m := range ctx.GraphMatches {
		out = append(out, graphSource(m))
	}
	for _, m := range ctx.Expanded {
		out = append(out, graphSource(m))
	}
	return out
}

func chunkSource(m graphstore.Match) Source {
	s := Source{Label: m.Label, Key: m.Key}
	if v, ok := m.Props["source_file"].(string); ok {
		s.SourceFile = v
	}
	if v, ok := m.Props["language"].(string); ok {
		s.Language = v
	}
	switch p := m.Props["page"].(type) {
	case int64:
		s.Page = int(p)
	case int:
		s.Page = p
	case float64:
		s.Page = int(p)
	}
	return s
}

// graphSource builds a Source for a non-chunk node, recovering its display
// name from whichever text property that label stores it under, since Key
// is the NFKC-casefolded upsert key ("acme corp"), not the name a citation
// should show ("Acme Corp").
func graphSource(m graphstore.Match) Source {
	s := Source{Label: m.Label, Key: m.Key, Name: matchDisplayName(m)}
	if v, ok := m.Props["entity_type"].(string); ok {
		s.EntityType = v
	}
	if v, ok := m.Props["language"].(string); ok {
		s.Language = v
	}
	return s
}

func matchDisplayName(m graphstore.Match) string {
	for _, field := range []string{"name", "term", "case_name", "title"} {
		if v, ok := m.Props[field].(string); ok && v != "" {
			return v
		}
	}
	return m.Key
}
