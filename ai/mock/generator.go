package mock

import (
	"context"
	"sync"

	"github.com/poiesic/profmatch/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateStreamFunc replaces the default behavior if set.
	GenerateStreamFunc func(ctx context.Context, req ai.GenerationRequest, onChunk func(string) error) error

	// Chunks are streamed in order by the default behavior.
	Chunks []string

	// FailAfter, when non-nil, is returned after Chunks have been delivered.
	FailAfter error

	mu       sync.Mutex
	requests []ai.GenerationRequest
}

// NewMockGenerator creates a generator that streams the given chunks.
func NewMockGenerator(chunks ...string) *MockGenerator {
	return &MockGenerator{Chunks: chunks}
}

// GenerateStream records the request and streams the configured chunks.
func (m *MockGenerator) GenerateStream(ctx context.Context, req ai.GenerationRequest, onChunk func(string) error) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateStreamFunc
	chunks := append([]string(nil), m.Chunks...)
	failAfter := m.FailAfter
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req, onChunk)
	}
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return failAfter
}

// CallCount returns the number of GenerateStream calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or a zero value.
func (m *MockGenerator) LastRequest() ai.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.GenerationRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded requests and custom behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.GenerateStreamFunc = nil
	m.FailAfter = nil
}
