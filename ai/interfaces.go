package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/profmatch/core"
)

var (
	// ErrServiceUnavailable indicates a network, timeout or server-side failure.
	ErrServiceUnavailable = errors.New("ai service unavailable")

	// ErrInputRejected indicates the provider refused the input itself
	// (400, 413 or 422).
	ErrInputRejected = errors.New("ai input rejected")

	// ErrServiceRefused indicates the provider refused the caller rather than
	// the input: bad or expired credentials, no access, unknown model.
	// It matches core.ErrServiceRefused.
	ErrServiceRefused = fmt.Errorf("ai service refused request: %w", core.ErrServiceRefused)
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Provider failures are wrapped with ErrServiceUnavailable, ErrInputRejected
	// or ErrServiceRefused.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// GenerationRequest is one stateless completion request.
// The full history is sent every turn.
type GenerationRequest struct {
	// System holds the behavior instructions placed before the history.
	System string

	// History is the conversation so far, oldest first.
	History []core.ConversationMessage
}

// Generator produces a streamed completion.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateStream sends req and calls onChunk with each text fragment in
	// arrival order. A non-nil error from onChunk aborts the stream.
	// Returns once the stream has ended.
	GenerateStream(ctx context.Context, req GenerationRequest, onChunk func(chunk string) error) error
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
