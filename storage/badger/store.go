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

package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
)

// Store implements storage.Store on top of a BadgerDB backend.
// Query is a full scan of the namespace, which suits indexes of a few
// thousand instructors.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// newStore is an internal constructor that returns the concrete type.
func newStore(backend *Backend) (*Store, error) {
	if backend == nil {
		return nil, errors.New("badger: backend is required")
	}
	return &Store{
		backend: backend,
		logger:  backend.logger.With("component", "badger-store"),
	}, nil
}

// NewStore creates an index store over backend.
// The store does not own the backend; Close is a no-op.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(backend *Backend) (storage.Store, error) {
	return newStore(backend)
}

func (s *Store) checkOpen(ctx context.Context) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// Upsert writes entry in a single transaction, replacing any previous entry.
func (s *Store) Upsert(ctx context.Context, namespace string, entry *core.IndexEntry) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("%w: entry key is required", storage.ErrInvalidQuery)
	}

	value := storage.MarshalIndexEntry(entry)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEntryKey(namespace, entry.Key), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return s.wrap(err)
	}

	s.logger.Debug("upserted entry", "namespace", namespace, "key", entry.Key, "bytes", len(value))
	return nil
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, namespace, key string) (*core.IndexEntry, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var entry *core.IndexEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(namespace, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalIndexEntry(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, s.wrap(err)
	}
	return entry, nil
}

// Delete removes the entry stored under key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeEntryKey(namespace, key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return s.wrap(err)
}

// Count returns the number of entries in namespace.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeNamespacePrefix(namespace)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, s.wrap(err)
	}
	return count, nil
}

// Query scans namespace and returns the k most similar entries.
// Equal scores are ordered by key so results are deterministic.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, k int) ([]storage.Match, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}

	var matches []storage.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeNamespacePrefix(namespace)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalIndexEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(entry.Vector) == 0 {
				continue
			}

			matches = append(matches, storage.Match{
				Key:    entry.Key,
				Record: entry.Record,
				Score:  cosineSimilarity(vector, entry.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, s.wrap(err)
	}

	slices.SortFunc(matches, func(a, b storage.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Close is a no-op; the backend is closed by its owner.
func (s *Store) Close() error {
	return nil
}

// wrap maps badger errors onto storage errors.
func (s *Store) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return storage.ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return storage.ErrStorageClosed
	case errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	default:
		s.logger.Error("badger operation failed", "err", err)
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
}
