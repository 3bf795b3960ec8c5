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

// Package embedding turns instructor records and questions into validated vectors.
//
// The Client wraps an ai.Embedder and normalizes its failures onto the
// embedding error kinds in core: ErrEmbeddingUnavailable for network,
// timeout and server failures, ErrEmbeddingRejected for refused input and
// ErrInvalidEmbedding for unusable responses. Credential and model failures
// stay ErrEmbeddingUnavailable but also match core.ErrServiceRefused, so they
// are neither user errors nor transient.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/core"
)

// Client embeds text through an ai.Embedder. It holds no mutable state
// apart from the optional cache and is safe for concurrent use.
type Client struct {
	embedder ai.Embedder
	model    string
	minDim   int
	timeout  time.Duration
	cache    Cache
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithMinDimension rejects vectors shorter than dim.
func WithMinDimension(dim int) Option {
	return func(c *Client) error {
		if dim < 1 {
			return errors.New("embedding: min dimension must be at least 1")
		}
		c.minDim = dim
		return nil
	}
}

// WithTimeout bounds each embedding call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.New("embedding: timeout cannot be negative")
		}
		c.timeout = d
		return nil
	}
}

// WithCache enables a content-hash cache.
func WithCache(cache Cache) Option {
	return func(c *Client) error {
		c.cache = cache
		return nil
	}
}

// WithModel names the embedding model. The name is part of every cache key.
func WithModel(model string) Option {
	return func(c *Client) error {
		c.model = model
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding")
		return nil
	}
}

// NewClient creates an embedding client.
func NewClient(embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, errors.New("embedding: embedder is required")
	}
	c := &Client{
		embedder: embedder,
		minDim:   1,
		logger:   slog.Default().With("component", "embedding"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SerializeRecord renders a record as the JSON text that is embedded.
func SerializeRecord(record *core.InstructorRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: nil record", core.ErrEmbeddingRejected)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrEmbeddingRejected, err)
	}
	return string(data), nil
}

// EmbedRecord embeds the serialized form of record.
func (c *Client) EmbedRecord(ctx context.Context, record *core.InstructorRecord) (core.Vector, error) {
	text, err := SerializeRecord(record)
	if err != nil {
		return nil, err
	}
	return c.Embed(ctx, text)
}

// EmbedQuestion embeds a user question as is, after trimming.
func (c *Client) EmbedQuestion(ctx context.Context, question string) (core.Vector, error) {
	return c.Embed(ctx, strings.TrimSpace(question))
}

// Embed embeds text and validates the response.
func (c *Client) Embed(ctx context.Context, text string) (core.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", core.ErrEmbeddingRejected)
	}

	key := core.ContentHash(c.model, text)
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.embedder.EmbedText(callCtx, text)
	if err != nil {
		c.logger.Warn("embedding failed", "length", len(text), "elapsed", time.Since(start), "err", err)
		return nil, mapError(ctx, err)
	}

	v := core.Vector(raw)
	if err := core.ValidateVector(v, c.minDim); err != nil {
		c.logger.Warn("embedding response rejected", "dimension", len(v), "err", err)
		return nil, err
	}

	c.logger.Debug("embedded text", "length", len(text), "dimension", len(v), "elapsed", time.Since(start))
	c.store(ctx, key, v)
	return v, nil
}

func (c *Client) lookup(ctx context.Context, key string) (core.Vector, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache read failed", "err", err)
		return nil, false
	}
	if !ok || core.ValidateVector(v, c.minDim) != nil {
		return nil, false
	}
	return v, true
}

func (c *Client) store(ctx context.Context, key string, v core.Vector) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, v); err != nil {
		c.logger.Warn("embedding cache write failed", "err", err)
	}
}

// mapError translates provider failures into core embedding errors.
// A timeout of the per-call deadline is reported as unavailable; caller
// cancellation passes through.
func mapError(parent context.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrEmbeddingUnavailable),
		errors.Is(err, core.ErrEmbeddingRejected),
		errors.Is(err, core.ErrInvalidEmbedding):
		return err
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		return err
	case errors.Is(err, ai.ErrInputRejected):
		return fmt.Errorf("%w: %w", core.ErrEmbeddingRejected, err)
	case errors.Is(err, core.ErrServiceRefused):
		// Not the caller's input and not worth retrying.
		return fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
}
