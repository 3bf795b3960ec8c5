package storage

import (
	"context"

	"github.com/poiesic/profmatch/core"
)

// Match is one similarity query hit.
type Match struct {
	Key    string
	Record core.InstructorRecord
	Score  float32
}

// Store persists index entries and runs similarity queries.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Upsert inserts entry or atomically replaces the entry with the same key.
	Upsert(ctx context.Context, namespace string, entry *core.IndexEntry) error

	// Query returns up to k entries ordered by descending cosine similarity.
	// Ordering among equal scores is left to the caller.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)

	// Get returns the entry stored under key.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, namespace, key string) (*core.IndexEntry, error)

	// Delete removes the entry stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Count returns the number of entries in namespace.
	Count(ctx context.Context, namespace string) (int, error)

	// Close releases resources held by the store.
	Close() error
}
