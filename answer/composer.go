// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/core"
)

// Composer turns a conversation and a context block into a streamed reply.
type Composer struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer) error

// WithTimeout bounds each generation call, stream included.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) error {
		if d < 0 {
			return fmt.Errorf("answer: negative timeout %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "answer")
		return nil
	}
}

// NewComposer creates a new composer.
func NewComposer(generator ai.Generator, opts ...Option) (*Composer, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	c := &Composer{
		generator: generator,
		logger:    slog.Default().With("component", "answer"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Compose validates history and starts one generation request for the newest
// user turn. The full history is sent; nothing is remembered between calls.
func (c *Composer) Compose(ctx context.Context, history []core.ConversationMessage, contextBlock string) (*Stream, error) {
	if _, ok := core.LastUserMessage(history); !ok {
		return nil, ErrEmptyHistory
	}
	for i, msg := range history {
		if err := core.ValidateMessage(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	req := ai.GenerationRequest{
		System:  SystemPrompt(contextBlock),
		History: append([]core.ConversationMessage(nil), history...),
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	logger := c.logger
	start := time.Now()
	return newStream(callCtx, cancel, func(ctx context.Context, emit func(string) error) error {
		err := c.generator.GenerateStream(ctx, req, emit)
		if err != nil {
			logger.Warn("generation ended early", "messages", len(req.History), "elapsed", time.Since(start), "err", err)
		} else {
			logger.Debug("generation finished", "messages", len(req.History), "elapsed", time.Since(start))
		}
		return err
	}), nil
}

// Complete composes a reply and drains it into a string.
// On failure the partial content is returned along with the error.
func (c *Composer) Complete(ctx context.Context, history []core.ConversationMessage, contextBlock string) (string, error) {
	stream, err := c.Compose(ctx, history, contextBlock)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	return Collect(stream, nil)
}
