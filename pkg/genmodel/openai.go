package genmodel

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI is a genmodel.Model backed by an OpenAI-compatible chat
// completions endpoint, grounded on the prior codebase's
// pkg/ai/openai/chat.go GenerateCompletionWithFormat (extract) and
// GenerateChatStream (answer).
type OpenAI struct {
	client       openai.Client
	extractModel string
	answerModel  string
}

// NewOpenAI builds an OpenAI genmodel.Model. baseURL may be empty to use
// the default OpenAI endpoint.
func NewOpenAI(apiKey, baseURL, extractModel, answerModel string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:       openai.NewClient(opts...),
		extractModel: extractModel,
		answerModel:  answerModel,
	}
}

func (o *OpenAI) Extract(ctx context.Context, schemaName string, schema map[string]any, prompt string, opts ...GenerateOption) (string, error) {
	options := GenerateOptions{Model: o.extractModel, Temperature: 0.1}
	for _, opt := range opts {
		opt(&options)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(options.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("genmodel: extract: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("genmodel: extract: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Answer(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (<-chan StreamEvent, error) {
	options := GenerateOptions{Model: o.answerModel, Temperature: 0.2}
	for _, opt := range opts {
		opt(&options)
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	})

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				select {
				case out <- StreamEvent{Type: "content", Content: delta}:
				case <-ctx.Done():
					out <- StreamEvent{Type: "error", Err: ctx.Err()}
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamEvent{Type: "error", Err: err}
			return
		}
		out <- StreamEvent{Type: "done"}
	}()

	return out, nil
}
