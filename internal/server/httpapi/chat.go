package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/internal/server/middleware"
	"github.com/lexigraph/lexigraph/pkg/answer"
	"github.com/lexigraph/lexigraph/pkg/session"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// sourceView is the wire shape for a citation: a discriminated union
// flattened into one struct with omitempty fields.
type sourceView struct {
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Page       int    `json:"page,omitempty"`
	Language   string `json:"language,omitempty"`
}

func toSourceView(s answer.Source) sourceView {
	v := sourceView{Language: s.Language, SourceFile: s.SourceFile, Page: s.Page}
	switch s.Label {
	case "DocumentChunk":
		v.Type = "chunk"
	case "LegalConcept":
		v.Type = "legal_concept"
		v.Name = s.Name
	default:
		v.Type = strings.ToLower(s.Label)
		v.Name = s.Name
	}
	return v
}

func toSourceViews(sources []answer.Source) []sourceView {
	out := make([]sourceView, 0, len(sources))
	for _, s := range sources {
		out = append(out, toSourceView(s))
	}
	return out
}

func bindChatRequest(c echo.Context) (chatRequest, error) {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return chatRequest{}, apperr.New(apperr.InvalidInput, "malformed request body", err)
	}
	if req.SessionID == "" || req.Message == "" {
		return chatRequest{}, apperr.New(apperr.InvalidInput, "session_id and message are required", nil)
	}

	app := c.(*middleware.AppContext).App
	if app.Config.MaxMessageChars > 0 && len(req.Message) > app.Config.MaxMessageChars {
		return chatRequest{}, apperr.New(apperr.InvalidInput, "message exceeds maximum length", nil)
	}
	return req, nil
}

// Chat handles POST /chat: a literal Server-Sent Events stream, one
// `data: <json>\n\n` frame per content fragment, terminated by a frame
// carrying done and the citation list. This generalises the prior
// codebase's flush-per-fragment streaming loop to standard SSE framing
// rather than that loop's newline-delimited JSON.
func Chat(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return respondErr(c, err)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	exists, err := app.Store.SessionExists(ctx, req.SessionID)
	if err != nil {
		return respondErr(c, err)
	}
	if !exists {
		return respondErr(c, apperr.New(apperr.SessionGone, "session not found", nil))
	}

	events, err := app.Answerer.Answer(ctx, req.SessionID, req.Message)
	if err != nil {
		return respondErr(c, classifyAnswerErr(err))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	for ev := range events {
		switch ev.Type {
		case "content":
			if err := writeSSE(c, enc, map[string]any{"chunk": ev.Content}); err != nil {
				return nil
			}
		case "done":
			_ = writeSSE(c, enc, map[string]any{"done": true, "sources": toSourceViews(ev.Sources)})
			return nil
		case "error":
			_ = writeSSE(c, enc, map[string]any{"done": true, "sources": []sourceView{}})
			return nil
		}
	}
	return nil
}

func writeSSE(c echo.Context, enc *json.Encoder, payload map[string]any) error {
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if err := enc.Encode(payload); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n")); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

type nonStreamingResponse struct {
	Response string       `json:"response"`
	Sources  []sourceView `json:"sources"`
}

// ChatNonStreaming handles POST /chat/non-streaming: drains the same
// Answerer.Answer channel synchronously and returns the assembled reply.
func ChatNonStreaming(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return respondErr(c, err)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	exists, err := app.Store.SessionExists(ctx, req.SessionID)
	if err != nil {
		return respondErr(c, err)
	}
	if !exists {
		return respondErr(c, apperr.New(apperr.SessionGone, "session not found", nil))
	}

	events, err := app.Answerer.Answer(ctx, req.SessionID, req.Message)
	if err != nil {
		return respondErr(c, classifyAnswerErr(err))
	}

	var b strings.Builder
	var sources []answer.Source
	for ev := range events {
		switch ev.Type {
		case "content":
			b.WriteString(ev.Content)
		case "done":
			sources = ev.Sources
		case "error":
			return respondErr(c, classifyAnswerErr(ev.Err))
		}
	}

	return c.JSON(http.StatusOK, nonStreamingResponse{Response: b.String(), Sources: toSourceViews(sources)})
}

type historyResponse struct {
	SessionID  string            `json:"session_id"`
	Messages   []session.Message `json:"messages"`
	TotalCount int               `json:"total_count"`
}

// ChatHistory handles GET /chat/history/{session_id}?limit=N.
func ChatHistory(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	exists, err := app.Store.SessionExists(ctx, sessionID)
	if err != nil {
		return respondErr(c, err)
	}
	if !exists {
		return respondErr(c, apperr.New(apperr.SessionGone, "session not found", nil))
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := app.Store.History(ctx, sessionID, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, historyResponse{SessionID: sessionID, Messages: messages, TotalCount: len(messages)})
}

// classifyAnswerErr maps an Answerer.Answer failure to session_gone when the
// session was deleted mid-pipeline, instead of falling through to the
// generic upstream/internal classification.
func classifyAnswerErr(err error) error {
	if errors.Is(err, session.ErrSessionGone) {
		return apperr.New(apperr.SessionGone, "session was deleted", err)
	}
	return apperr.New(apperr.UpstreamUnavailable, "generation failed", err)
}
