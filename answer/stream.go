package answer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/poiesic/profmatch/core"
)

// Stream is the lazy, finite, single-use sequence of chunks for one reply.
// Chunks are delivered in arrival order by a single producer.
type Stream struct {
	chunks chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error

	used      atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

type produceFunc func(ctx context.Context, emit func(chunk string) error) error

// newStream starts produce in its own goroutine. ctx is owned by the stream
// and cancel is called when the stream is closed.
func newStream(ctx context.Context, cancel context.CancelFunc, produce produceFunc) *Stream {
	s := &Stream{
		chunks: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.chunks)
		defer cancel()

		delivered := false
		err := produce(ctx, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			select {
			case s.chunks <- chunk:
				delivered = true
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		s.err = s.classify(err, delivered)
	}()
	return s
}

func (s *Stream) classify(err error, delivered bool) error {
	switch {
	case err == nil:
		return nil
	case s.closed.Load() && errors.Is(err, context.Canceled):
		return nil
	case delivered:
		return fmt.Errorf("%w: %w", core.ErrGenerationInterrupted, err)
	case errors.Is(err, core.ErrGenerationUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrGenerationUnavailable, err)
	}
}

// All yields every non-empty chunk with a nil error. If the reply ends early
// a final ("", err) pair is yielded. Breaking out of the loop closes the
// stream. A second iteration yields only ErrStreamConsumed.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}
		defer s.Close()

		for chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		<-s.done
		if s.err != nil {
			yield("", s.err)
		}
	}
}

// Err returns the terminal error once the producer has stopped, nil before that.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close abandons the stream and discards any chunks not yet received.
// Chunks already applied by the caller are unaffected. Close is idempotent.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		for range s.chunks {
		}
		<-s.done
	})
}

// Chunks is a single-use sequence of reply chunks, such as a *Stream.
type Chunks interface {
	All() iter.Seq2[string, error]
}

// Collect consumes the stream into the open assistant turn of conv and
// returns the final content. On failure the content received so far is kept
// as the final assistant message and the stream error is returned with it.
// A nil conv collects into a scratch conversation.
func Collect(s Chunks, conv *core.Conversation) (string, error) {
	if conv == nil {
		conv = core.NewConversation()
	}
	conv.BeginAssistant()

	var streamErr error
	for chunk, err := range s.All() {
		if err != nil {
			streamErr = err
			break
		}
		if err := conv.ApplyChunk(chunk); err != nil {
			streamErr = err
			break
		}
	}

	content, err := conv.FinishAssistant()
	if streamErr == nil {
		streamErr = err
	}
	return content, streamErr
}
