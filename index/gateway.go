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

// Package index is the gateway between the pipelines and the vector index backend.
//
// The Gateway owns the keying scheme, the single application namespace and
// the configured dimension. It validates every crossing, applies per-call
// timeouts and translates backend failures into the index error kinds in core.
//
// Ordering: results are sorted by descending score; equal scores are ordered
// by ascending key. Insertion recency never affects order.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
)

const (
	// DefaultNamespace is the partition every entry of this application lives in.
	DefaultNamespace = "ns1"

	// MaxKeyLength is the longest key accepted, in bytes.
	MaxKeyLength = 512

	// DefaultTimeout bounds each backend call.
	DefaultTimeout = 10 * time.Second
)

// Gateway upserts and queries instructor entries.
type Gateway struct {
	store     storage.Store
	namespace string
	dimension int
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway) error

// WithNamespace sets the namespace. It cannot be changed per call.
func WithNamespace(ns string) Option {
	return func(g *Gateway) error {
		if strings.TrimSpace(ns) == "" {
			return errors.New("index: namespace cannot be empty")
		}
		g.namespace = ns
		return nil
	}
}

// WithDimension fixes the vector length. Zero accepts any length.
func WithDimension(dim int) Option {
	return func(g *Gateway) error {
		if dim < 0 {
			return errors.New("index: dimension cannot be negative")
		}
		g.dimension = dim
		return nil
	}
}

// WithTimeout bounds each backend call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		if d < 0 {
			return errors.New("index: timeout cannot be negative")
		}
		g.timeout = d
		return nil
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) error {
		if now == nil {
			return errors.New("index: clock cannot be nil")
		}
		g.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger.With("component", "index")
		return nil
	}
}

// NewGateway creates a gateway over store.
func NewGateway(store storage.Store, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("index: store is required")
	}
	g := &Gateway{
		store:     store,
		namespace: DefaultNamespace,
		timeout:   DefaultTimeout,
		now:       time.Now,
		logger:    slog.Default().With("component", "index"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Namespace returns the namespace all entries live in.
func (g *Gateway) Namespace() string {
	return g.namespace
}

// Dimension returns the configured vector length, 0 if unchecked.
func (g *Gateway) Dimension() int {
	return g.dimension
}

// ValidateKey rejects empty, oversized, non-UTF-8 and control-character keys,
// and keys with surrounding whitespace.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", core.ErrInvalidKey)
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: longer than %d bytes", core.ErrInvalidKey, MaxKeyLength)
	case !utf8.ValidString(key):
		return fmt.Errorf("%w: not valid UTF-8", core.ErrInvalidKey)
	case strings.TrimSpace(key) != key:
		return fmt.Errorf("%w: surrounding whitespace", core.ErrInvalidKey)
	}
	if strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: control character", core.ErrInvalidKey)
	}
	return nil
}

func (g *Gateway) checkDimension(v core.Vector) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", core.ErrDimensionMismatch)
	}
	if g.dimension > 0 && len(v) != g.dimension {
		return fmt.Errorf("%w: got %d, index has %d", core.ErrDimensionMismatch, len(v), g.dimension)
	}
	return nil
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

// Upsert stores record under key, replacing any existing entry in one step.
func (g *Gateway) Upsert(ctx context.Context, key string, vector core.Vector, record *core.InstructorRecord) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := g.checkDimension(vector); err != nil {
		return err
	}
	if err := core.ValidateRecord(record); err != nil {
		return err
	}

	entry := &core.IndexEntry{
		Key:       key,
		Vector:    append(core.Vector(nil), vector...),
		Record:    *record.Clone(),
		UpdatedAt: g.now().UTC(),
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	if err := g.store.Upsert(callCtx, g.namespace, entry); err != nil {
		g.logger.Warn("upsert failed", "key", key, "err", err)
		return mapError(ctx, err)
	}
	g.logger.Debug("upserted", "key", key, "namespace", g.namespace)
	return nil
}

// Query returns up to k entries nearest to vector.
func (g *Gateway) Query(ctx context.Context, vector core.Vector, k int) (core.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}
	if err := g.checkDimension(vector); err != nil {
		return nil, err
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	matches, err := g.store.Query(callCtx, g.namespace, vector, k)
	if err != nil {
		g.logger.Warn("query failed", "k", k, "err", err)
		return nil, mapError(ctx, err)
	}

	slices.SortStableFunc(matches, func(a, b storage.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	result := make(core.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		result = append(result, core.ScoredRecord{Key: m.Key, Record: m.Record, Score: m.Score})
	}
	g.logger.Debug("queried", "k", k, "hits", len(result))
	return result, nil
}

// Get returns the current entry for key.
func (g *Gateway) Get(ctx context.Context, key string) (*core.IndexEntry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	entry, err := g.store.Get(callCtx, g.namespace, key)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return entry, nil
}

// Delete removes the entry for key. Removing an absent key is not an error.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	if err := g.store.Delete(callCtx, g.namespace, key); err != nil {
		g.logger.Warn("delete failed", "key", key, "err", err)
		return mapError(ctx, err)
	}
	g.logger.Debug("deleted", "key", key, "namespace", g.namespace)
	return nil
}

// Count returns the number of entries in the namespace.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	n, err := g.store.Count(callCtx, g.namespace)
	if err != nil {
		return 0, mapError(ctx, err)
	}
	return n, nil
}

// mapError translates backend failures into core index errors.
func mapError(parent context.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return err
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		return err
	case errors.Is(err, storage.ErrRejected) && strings.Contains(strings.ToLower(err.Error()), "dimension"):
		return fmt.Errorf("%w: %w", core.ErrDimensionMismatch, err)
	case errors.Is(err, storage.ErrRejected):
		// Metadata over the size limit, a bad key, a revoked API key:
		// resubmitting the same request cannot succeed.
		return fmt.Errorf("%w: %w: %w", core.ErrIndexUnavailable, core.ErrServiceRefused, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
}
