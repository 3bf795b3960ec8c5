package retrieval

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/profmatch/answer"
	"github.com/poiesic/profmatch/core"
)

// DefaultTopK is the number of records retrieved per question.
const DefaultTopK = 3

// QuestionEmbedder embeds a user question.
type QuestionEmbedder interface {
	EmbedQuestion(ctx context.Context, question string) (core.Vector, error)
}

// Searcher runs similarity queries against the index.
type Searcher interface {
	Query(ctx context.Context, vector core.Vector, k int) (core.RetrievalResult, error)
}

// Composer starts a streamed reply.
type Composer interface {
	Compose(ctx context.Context, history []core.ConversationMessage, contextBlock string) (*answer.Stream, error)
}

// Pipeline orchestrates Embed(question) → Search → Context → Compose.
type Pipeline struct {
	embedder QuestionEmbedder
	index    Searcher
	composer Composer
	topK     int
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithTopK sets how many records are retrieved per question.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(p *Pipeline) error {
		if k <= 0 {
			return fmt.Errorf("retrieval: top-k must be positive, got %d", k)
		}
		p.topK = k
		return nil
	}
}

// WithMonitor attaches retrieval and generation hooks.
func WithMonitor(m Monitor) Option {
	return func(p *Pipeline) error {
		if m == nil {
			m = &noopMonitor{}
		}
		p.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "retrieval")
		return nil
	}
}

// NewPipeline creates a new retrieval pipeline.
func NewPipeline(embedder QuestionEmbedder, index Searcher, composer Composer, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if composer == nil {
		return nil, ErrComposerRequired
	}

	p := &Pipeline{
		embedder: embedder,
		index:    index,
		composer: composer,
		topK:     DefaultTopK,
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// TopK returns the configured number of records per question.
func (p *Pipeline) TopK() int {
	return p.topK
}

// Retrieve embeds question and returns up to TopK records, most similar first.
// Fewer results, including none, are not an error.
func (p *Pipeline) Retrieve(ctx context.Context, question string) (core.RetrievalResult, error) {
	start := time.Now()

	vector, err := p.embedder.EmbedQuestion(ctx, question)
	if err != nil {
		p.logger.Warn("question embedding failed", "err", err)
		p.monitor.Retrieved(0, time.Since(start), err)
		return nil, err
	}

	result, err := p.index.Query(ctx, vector, p.topK)
	if err != nil {
		p.logger.Warn("index query failed", "k", p.topK, "err", err)
		p.monitor.Retrieved(0, time.Since(start), err)
		return nil, err
	}

	p.logger.Debug("retrieved", "k", p.topK, "hits", len(result), "elapsed", time.Since(start))
	p.monitor.Retrieved(len(result), time.Since(start), nil)
	return result, nil
}

// Answer runs one chat turn for the newest user message in history.
// The returned turn must be consumed or closed.
func (p *Pipeline) Answer(ctx context.Context, history []core.ConversationMessage) (*Turn, error) {
	last, ok := core.LastUserMessage(history)
	if !ok {
		return nil, answer.ErrEmptyHistory
	}

	result, err := p.Retrieve(ctx, last.Content)
	if err != nil {
		return nil, err
	}

	block := FormatContext(result, p.topK)
	start := time.Now()
	stream, err := p.composer.Compose(ctx, history, block)
	if err != nil {
		p.monitor.Generated(time.Since(start), err)
		return nil, err
	}

	return &Turn{
		Question: last.Content,
		Results:  result,
		Context:  block,
		stream:   stream,
		start:    start,
		monitor:  p.monitor,
	}, nil
}

// Turn is one in-progress reply together with the context it was built from.
type Turn struct {
	Question string
	Results  core.RetrievalResult
	Context  string

	stream  *answer.Stream
	start   time.Time
	monitor Monitor
	once    sync.Once
}

// All yields the reply chunks in arrival order. See answer.Stream.All.
func (t *Turn) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var streamErr error
		defer func() { t.finish(streamErr) }()

		for chunk, err := range t.stream.All() {
			if err != nil {
				streamErr = err
			}
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// Collect drains the reply into conv. See answer.Collect.
func (t *Turn) Collect(conv *core.Conversation) (string, error) {
	return answer.Collect(t, conv)
}

// Close abandons the reply.
func (t *Turn) Close() {
	t.stream.Close()
	t.finish(t.stream.Err())
}

func (t *Turn) finish(err error) {
	t.once.Do(func() {
		t.monitor.Generated(time.Since(t.start), err)
	})
}
