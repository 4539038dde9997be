// Package gentest is a scripted genmodel.Model used only by tests
// elsewhere in the module, in the same spirit as the prior codebase's
// test/mock_server.go standing in for a networked dependency.
package gentest

import (
	"context"

	"github.com/lexigraph/lexigraph/pkg/genmodel"
)

// Model returns a fixed extraction response and a fixed sequence of answer
// chunks, recording every call it receives for assertions.
type Model struct {
	ExtractResponse string
	ExtractErr      error
	AnswerChunks    []string
	AnswerErr       error

	ExtractCalls []string // prompts passed to Extract
	AnswerCalls  [][]genmodel.ChatMessage
}

func (m *Model) Extract(_ context.Context, _ string, _ map[string]any, prompt string, _ ...genmodel.GenerateOption) (string, error) {
	m.ExtractCalls = append(m.ExtractCalls, prompt)
	if m.ExtractErr != nil {
		return "", m.ExtractErr
	}
	return m.ExtractResponse, nil
}

func (m *Model) Answer(ctx context.Context, messages []genmodel.ChatMessage, _ ...genmodel.GenerateOption) (<-chan genmodel.StreamEvent, error) {
	m.AnswerCalls = append(m.AnswerCalls, messages)
	out := make(chan genmodel.StreamEvent, len(m.AnswerChunks)+1)
	go func() {
		defer close(out)
		if m.AnswerErr != nil {
			out <- genmodel.StreamEvent{Type: "error", Err: m.AnswerErr}
			return
		}
		for _, c := range m.AnswerChunks {
			select {
			case out <- genmodel.StreamEvent{Type: "content", Content: c}:
			case <-ctx.Done():
				out <- genmodel.StreamEvent{Type: "error", Err: ctx.Err()}
				return
			}
		}
		out <- genmodel.StreamEvent{Type: "done"}
	}()
	return out, nil
}
