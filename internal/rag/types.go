// Package rag orchestrates the retrieval-augmented answering pipeline:
// query rewriting, embedding, vector retrieval, prompt assembly, answer
// generation, and best-effort online evaluation.
package rag

import (
	"context"

	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retrieval"
)

// Query is one answering request. It is owned by the pipeline for the
// request's lifetime and never mutated.
type Query struct {
	// Text is the user's question.
	Text string

	// History holds prior conversation turns in order.
	History []llm.Message

	// UserContext carries opaque caller metadata (language preference etc.).
	UserContext map[string]any
}

// Result is the blocking-mode answer.
type Result struct {
	// Text is the generated answer, or a fixed user-safe apology when
	// generation failed.
	Text string

	// Sources are the retrieved chunks the answer was grounded on, in
	// ranking order. Empty when retrieval was skipped or degraded.
	Sources []retrieval.Chunk

	// Err carries the generation failure detail; nil on success. Failures
	// below the generator never surface here.
	Err error
}

// Stream event types.
const (
	EventSources = "sources"
	EventContent = "content"
	EventError   = "error"
)

// StreamEvent is one ordered chunk of a streaming answer. The first event is
// always sources; content deltas follow in generation order; an error event
// is terminal.
type StreamEvent struct {
	Type    string            `json:"type"`
	Sources []retrieval.Chunk `json:"sources,omitempty"`
	Content string            `json:"content,omitempty"`
}

// TokenStream is an ordered sequence of generated text fragments.
type TokenStream interface {
	// Recv returns the next fragment, io.EOF on normal completion, or the
	// mid-stream failure.
	Recv() (string, error)

	// Close releases the in-flight generation.
	Close() error
}

// ModelClient is the language-model provider surface the pipeline needs.
type ModelClient interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
	CompleteStream(ctx context.Context, req llm.ChatRequest) (TokenStream, error)
}

// providerAdapter adapts *llm.Client to ModelClient.
type providerAdapter struct {
	client *llm.Client
}

// NewModelClient wraps the concrete provider client.
func NewModelClient(client *llm.Client) ModelClient {
	return providerAdapter{client: client}
}

func (a providerAdapter) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	return a.client.Complete(ctx, req)
}

func (a providerAdapter) CompleteStream(ctx context.Context, req llm.ChatRequest) (TokenStream, error) {
	stream, err := a.client.CompleteStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
