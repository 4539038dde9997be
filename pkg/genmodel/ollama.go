package genmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Ollama is a genmodel.Model backed by a local or remote Ollama server,
// grounded on the prior codebase's pkg/ai/ollama/chat.go client.
type Ollama struct {
	client       *api.Client
	extractModel string
	answerModel  string
}

func NewOllama(baseURL, extractModel, answerModel string) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("genmodel: invalid base url: %w", err)
	}
	return &Ollama{
		client:       api.NewClient(u, nil),
		extractModel: extractModel,
		answerModel:  answerModel,
	}, nil
}

func (o *Ollama) Extract(ctx context.Context, schemaName string, schema map[string]any, prompt string, opts ...GenerateOption) (string, error) {
	options := GenerateOptions{Model: o.extractModel, Temperature: 0.1}
	for _, opt := range opts {
		opt(&options)
	}

	format, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("genmodel: marshal schema %s: %w", schemaName, err)
	}

	stream := false
	var final api.ChatResponse
	err = o.client.Chat(ctx, &api.ChatRequest{
		Model:    options.Model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Format:   json.RawMessage(format),
		Options:  map[string]any{"temperature": options.Temperature},
	}, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("genmodel: extract: %w", err)
	}
	return final.Message.Content, nil
}

func (o *Ollama) Answer(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (<-chan StreamEvent, error) {
	options := GenerateOptions{Model: o.answerModel, Temperature: 0.2}
	for _, opt := range opts {
		opt(&options)
	}

	apiMsgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		apiMsgs = append(apiMsgs, api.Message{Role: m.Role, Content: m.Content})
	}

	out := make(chan StreamEvent, 16)
	stream := true

	go func() {
		defer close(out)
		err := o.client.Chat(ctx, &api.ChatRequest{
			Model:    options.Model,
			Messages: apiMsgs,
			Stream:   &stream,
			Options:  map[string]any{"temperature": options.Temperature},
		}, func(cr api.ChatResponse) error {
			if cr.Message.Content != "" {
				select {
				case out <- StreamEvent{Type: "content", Content: cr.Message.Content}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			out <- StreamEvent{Type: "error", Err: err}
			return
		}
		out <- StreamEvent{Type: "done"}
	}()

	return out, nil
}
