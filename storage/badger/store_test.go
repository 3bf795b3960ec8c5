package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, backend, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})
	return store
}

func entry(name string, vec ...float32) *core.IndexEntry {
	return &core.IndexEntry{
		Key:    name,
		Vector: vec,
		Record: core.InstructorRecord{
			Name:           name,
			Department:     "Computer Science",
			RatingRaw:      "4.0",
			ReviewSnippets: []string{"review of " + name},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ns1", entry("J. Doe", 1, 0, 0)))

	got, err := store.Get(ctx, "ns1", "J. Doe")
	require.NoError(t, err)
	assert.Equal(t, "J. Doe", got.Record.Name)
	assert.Equal(t, core.Vector{1, 0, 0}, got.Vector)

	_, err = store.Get(ctx, "ns1", "Nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := entry("J. Doe", 1, 0)
	second := entry("J. Doe", 0, 1)
	second.Record.RatingRaw = "2.0"

	require.NoError(t, store.Upsert(ctx, "ns1", first))
	require.NoError(t, store.Upsert(ctx, "ns1", second))

	count, err := store.Count(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Get(ctx, "ns1", "J. Doe")
	require.NoError(t, err)
	assert.Equal(t, "2.0", got.Record.RatingRaw)
	assert.Equal(t, core.Vector{0, 1}, got.Vector)
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ns1", entry("A", 1, 0)))
	require.NoError(t, store.Upsert(ctx, "ns2", entry("B", 1, 0)))

	matches, err := store.Query(ctx, "ns1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A", matches[0].Key)
}

func TestStore_QueryOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Cosine scores against (1, 0): A=1.0, B≈0.894, C≈0.707, D=0, E=-1
	require.NoError(t, store.Upsert(ctx, "ns1", entry("C", 1, 1)))
	require.NoError(t, store.Upsert(ctx, "ns1", entry("A", 1, 0)))
	require.NoError(t, store.Upsert(ctx, "ns1", entry("E", -1, 0)))
	require.NoError(t, store.Upsert(ctx, "ns1", entry("B", 2, 1)))
	require.NoError(t, store.Upsert(ctx, "ns1", entry("D", 0, 1)))

	matches, err := store.Query(ctx, "ns1", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, []string{"A", "B", "C"}, []string{matches[0].Key, matches[1].Key, matches[2].Key})
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Greater(t, matches[1].Score, matches[2].Score)
}

func TestStore_QueryTiesOrderedByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Zed", "Amy", "Moe"} {
		require.NoError(t, store.Upsert(ctx, "ns1", entry(name, 1, 0)))
	}

	matches, err := store.Query(ctx, "ns1", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "Amy", matches[0].Key)
	assert.Equal(t, "Moe", matches[1].Key)
	assert.Equal(t, "Zed", matches[2].Key)
}

func TestStore_QueryEmpty(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.Query(context.Background(), "ns1", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_QueryInvalidK(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Query(context.Background(), "ns1", []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ns1", entry("A", 1)))
	require.NoError(t, store.Delete(ctx, "ns1", "A"))
	require.NoError(t, store.Delete(ctx, "ns1", "missing"))

	count, err := store.Count(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_Closed(t *testing.T) {
	store, backend, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	err = store.Upsert(context.Background(), "ns1", entry("A", 1))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := entry(fmt.Sprintf("prof-%d", i%5), float32(i), 1)
			assert.NoError(t, store.Upsert(ctx, "ns1", e))
		}(i)
	}
	wg.Wait()

	count, err := store.Count(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Every surviving entry decodes as a whole: vector and record agree on the key.
	for i := 0; i < 5; i++ {
		got, err := store.Get(ctx, "ns1", fmt.Sprintf("prof-%d", i))
		require.NoError(t, err)
		assert.Equal(t, got.Key, got.Record.Name)
		assert.Len(t, got.Vector, 2)
	}
}
