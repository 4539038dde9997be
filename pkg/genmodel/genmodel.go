// Package genmodel is the generative-model contract used for both
// structured extraction (Ingestor) and streaming answer generation
// (Answerer), grounded on the prior codebase's pkg/ai.GraphAIClient
// interface but narrowed to the two operations this pipeline actually
// needs.
package genmodel

import "context"

// ChatMessage is one turn of conversation history sent to the model.
type ChatMessage struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// StreamEvent is one increment of a streamed answer.
type StreamEvent struct {
	Type    string // "content" | "done" | "error"
	Content string
	Err     error
}

// GenerateOptions configures one call. The zero value uses the model's
// configured defaults.
type GenerateOptions struct {
	Model       string
	Temperature float64
}

// GenerateOption is a functional option, matching the prior codebase's
// pkg/ai.GenerateOption pattern.
type GenerateOption func(*GenerateOptions)

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) { o.Model = model }
}

func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

// Model is the narrow generative-model contract. Implementations must be
// safe for concurrent use.
type Model interface {
	// Extract sends prompt to the model constrained by schema (a JSON
	// Schema document) and returns the raw response text. It neither
	// repairs nor validates it — see pkg/ingest for the repair-then-validate
	// pipeline.
	Extract(ctx context.Context, schemaName string, schema map[string]any, prompt string, opts ...GenerateOption) (string, error)

	// Answer streams a generated reply for the given conversation.
	// The returned channel is closed when generation ends or ctx is
	// canceled.
	Answer(ctx context.Context, messages []ChatMessage, opts ...GenerateOption) (<-chan StreamEvent, error)
}
