package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
	"github.com/poiesic/profmatch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})
	g, err := NewGateway(store, opts...)
	require.NoError(t, err)
	return g
}

func record(name string) *core.InstructorRecord {
	return &core.InstructorRecord{
		Name:           name,
		Department:     "Computer Science",
		RatingRaw:      "4.5",
		ReviewSnippets: []string{"Great lectures"},
	}
}

func TestGateway_UpsertAndQuery(t *testing.T) {
	g := newTestGateway(t, WithDimension(2))
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "J. Doe", core.Vector{1, 0}, record("J. Doe")))

	result, err := g.Query(ctx, core.Vector{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "J. Doe", result[0].Key)
	assert.Equal(t, "J. Doe", result[0].Record.Name)
	assert.Equal(t, "ns1", g.Namespace())
}

func TestGateway_Delete(t *testing.T) {
	g := newTestGateway(t, WithDimension(2))
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "J. Doe", core.Vector{1, 0}, record("J. Doe")))
	require.NoError(t, g.Upsert(ctx, "A. Smith", core.Vector{0, 1}, record("A. Smith")))

	require.NoError(t, g.Delete(ctx, "J. Doe"))
	require.NoError(t, g.Delete(ctx, "J. Doe"), "deleting twice is fine")

	_, err := g.Get(ctx, "J. Doe")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	count, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, g.Delete(ctx, ""), core.ErrInvalidKey)
}

func TestGateway_QueryReturnsTopKInOrder(t *testing.T) {
	g := newTestGateway(t, WithDimension(2))
	ctx := context.Background()

	// Scores against (1, 0) are known: A=1, B≈0.96, C≈0.71, D≈0.24, E=0
	vectors := map[string]core.Vector{
		"A": {1, 0},
		"B": {3.5, 1},
		"C": {1, 1},
		"D": {1, 4},
		"E": {0, 1},
	}
	for name, v := range vectors {
		require.NoError(t, g.Upsert(ctx, name, v, record(name)))
	}

	result, err := g.Query(ctx, core.Vector{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, []string{"A", "B", "C"}, []string{result[0].Key, result[1].Key, result[2].Key})
	for i := 1; i < len(result); i++ {
		assert.GreaterOrEqual(t, result[i-1].Score, result[i].Score)
	}
}

func TestGateway_QueryEmptyIndex(t *testing.T) {
	g := newTestGateway(t)

	result, err := g.Query(context.Background(), core.Vector{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestGateway_LastWriteWins(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGateway(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "J. Doe", core.Vector{1, 0}, record("J. Doe")))
	updated := record("J. Doe")
	updated.RatingRaw = "3.0"
	now = now.Add(time.Hour)
	require.NoError(t, g.Upsert(ctx, "J. Doe", core.Vector{0, 1}, updated))

	count, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entry, err := g.Get(ctx, "J. Doe")
	require.NoError(t, err)
	assert.Equal(t, "3.0", entry.Record.RatingRaw)
	assert.Equal(t, core.Vector{0, 1}, entry.Vector)
	assert.True(t, now.Equal(entry.UpdatedAt))
}

func TestGateway_InvalidKey(t *testing.T) {
	g := newTestGateway(t)

	keys := []string{"", " padded", "tab\there", "new\nline", strings.Repeat("x", MaxKeyLength+1), "\xff\xfe"}
	for _, key := range keys {
		t.Run(fmt.Sprintf("%q", key), func(t *testing.T) {
			err := g.Upsert(context.Background(), key, core.Vector{1}, record("x"))
			assert.ErrorIs(t, err, core.ErrInvalidKey)
			assert.True(t, core.IsUserError(err))
		})
	}

	assert.NoError(t, ValidateKey("Dr. Ünïcode O'Brien-Smith"))
}

func TestGateway_DimensionMismatch(t *testing.T) {
	g := newTestGateway(t, WithDimension(768))
	ctx := context.Background()

	err := g.Upsert(ctx, "J. Doe", make(core.Vector, 1536), record("J. Doe"))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = g.Query(ctx, make(core.Vector, 3), 3)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rejected upserts never reach the store")
}

func TestGateway_RejectsIncompleteRecord(t *testing.T) {
	g := newTestGateway(t)
	bad := record("J. Doe")
	bad.RatingRaw = ""

	err := g.Upsert(context.Background(), "J. Doe", core.Vector{1}, bad)
	assert.ErrorIs(t, err, core.ErrIncompleteRecord)
}

func TestGateway_InvalidK(t *testing.T) {
	g := newTestGateway(t)

	_, err := g.Query(context.Background(), core.Vector{1}, 0)
	assert.Error(t, err)
}

// stubStore lets tests control backend behavior.
type stubStore struct {
	storage.Store
	matches []storage.Match
	err     error
	wait    bool
}

func (s *stubStore) Upsert(ctx context.Context, _ string, _ *core.IndexEntry) error {
	if s.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubStore) Query(context.Context, string, []float32, int) ([]storage.Match, error) {
	return s.matches, s.err
}

func TestGateway_TiesOrderedByKey(t *testing.T) {
	store := &stubStore{matches: []storage.Match{
		{Key: "Zed", Score: 0.5},
		{Key: "Amy", Score: 0.9},
		{Key: "Bob", Score: 0.5},
		{Key: "Cal", Score: 0.1},
	}}
	g, err := NewGateway(store)
	require.NoError(t, err)

	result, err := g.Query(context.Background(), core.Vector{1}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"Amy", "Bob", "Zed"}, []string{result[0].Key, result[1].Key, result[2].Key})
}

func TestGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", storage.ErrUnavailable, core.ErrIndexUnavailable},
		{"closed", storage.ErrStorageClosed, core.ErrIndexUnavailable},
		{"dimension rejected", fmt.Errorf("%w: Vector dimension 3 does not match", storage.ErrRejected), core.ErrDimensionMismatch},
		{"metadata rejected", fmt.Errorf("%w: Metadata size is 48000 bytes, which exceeds the limit", storage.ErrRejected), core.ErrServiceRefused},
		{"unknown", errors.New("boom"), core.ErrIndexUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGateway(&stubStore{err: tt.err})
			require.NoError(t, err)

			_, err = g.Query(context.Background(), core.Vector{1}, 3)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGateway_RejectedWriteIsNotTransient(t *testing.T) {
	rejected := fmt.Errorf("%w: pinecone upsert: InvalidArgument: Metadata size is 48000 bytes, which exceeds the limit of 40960 bytes", storage.ErrRejected)
	g, err := NewGateway(&stubStore{err: rejected})
	require.NoError(t, err)

	err = g.Upsert(context.Background(), "J. Doe", core.Vector{1}, record("J. Doe"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrServiceRefused)
	assert.NotErrorIs(t, err, core.ErrDimensionMismatch)
	assert.False(t, core.IsTransient(err))
	assert.False(t, core.IsUserError(err))
}

func TestGateway_TimeoutIsUnavailable(t *testing.T) {
	g, err := NewGateway(&stubStore{wait: true}, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	err = g.Upsert(context.Background(), "J. Doe", core.Vector{1}, record("J. Doe"))
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	assert.True(t, core.IsTransient(err))
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway(nil)
	assert.Error(t, err)

	_, err = NewGateway(&stubStore{}, WithNamespace(" "))
	assert.Error(t, err)

	_, err = NewGateway(&stubStore{}, WithDimension(-1))
	assert.Error(t, err)
}
