package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/ai/mock"
	"github.com/poiesic/profmatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *core.InstructorRecord {
	return &core.InstructorRecord{
		Name:           "J. Doe",
		Department:     "Computer Science",
		RatingRaw:      "4.5",
		ReviewSnippets: []string{"Great lectures"},
	}
}

func TestSerializeRecord(t *testing.T) {
	text, err := SerializeRecord(sampleRecord())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, "J. Doe", decoded["name"])
	assert.Equal(t, "Computer Science", decoded["department"])
	assert.Equal(t, "4.5", decoded["rating"])
	assert.Equal(t, []any{"Great lectures"}, decoded["reviews"])

	_, err = SerializeRecord(nil)
	assert.ErrorIs(t, err, core.ErrEmbeddingRejected)
}

func TestClient_EmbedRecord(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(768)
	client, err := NewClient(embedder, WithMinDimension(768))
	require.NoError(t, err)

	v, err := client.EmbedRecord(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Len(t, v, 768)

	want, _ := SerializeRecord(sampleRecord())
	assert.Equal(t, []string{want}, embedder.Texts())
}

func TestClient_EmbedQuestionTrims(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(8)
	client, err := NewClient(embedder)
	require.NoError(t, err)

	_, err = client.EmbedQuestion(context.Background(), "  Who teaches CS?  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Who teaches CS?"}, embedder.Texts())

	_, err = client.EmbedQuestion(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmbeddingRejected)
	assert.Equal(t, 1, embedder.CallCount(), "empty input never reaches the service")
}

func TestClient_InvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"nil vector", nil},
		{"empty vector", []float32{}},
		{"undersized", []float32{0.1, 0.2}},
		{"not a number", []float32{0.1, float32(math.NaN()), 0.3, 0.4}},
		{"infinite", []float32{0.1, float32(math.Inf(1)), 0.3, 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
				return tt.vec, nil
			}
			client, err := NewClient(embedder, WithMinDimension(4))
			require.NoError(t, err)

			_, err = client.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, core.ErrInvalidEmbedding)
			assert.False(t, core.IsTransient(err))
		})
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"service unavailable", ai.ErrServiceUnavailable, core.ErrEmbeddingUnavailable},
		{"input rejected", ai.ErrInputRejected, core.ErrEmbeddingRejected},
		{"service refused", ai.ErrServiceRefused, core.ErrServiceRefused},
		{"unclassified", errors.New("socket closed"), core.ErrEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
				return nil, tt.err
			}
			client, err := NewClient(embedder)
			require.NoError(t, err)

			_, err = client.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClient_BadCredentialsAreNotUserErrors(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embed: %w: status code: 401: Incorrect API key provided", ai.ErrServiceRefused)
	}
	client, err := NewClient(embedder)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.NotErrorIs(t, err, core.ErrEmbeddingRejected)
	assert.False(t, core.IsUserError(err))
	assert.False(t, core.IsTransient(err))
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	client, err := NewClient(embedder, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "slow")
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.True(t, core.IsTransient(err))
}

func TestClient_CallerCancellationPassesThrough(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	client, err := NewClient(embedder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestClient_Cache(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(4)
	cache := NewMemoryCache(10)
	client, err := NewClient(embedder, WithCache(cache), WithModel("m1"))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := client.Embed(ctx, "same text")
	require.NoError(t, err)
	second, err := client.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount())
	assert.Equal(t, 1, cache.Len())

	// A different model name is a different cache key.
	other, err := NewClient(embedder, WithCache(cache), WithModel("m2"))
	require.NoError(t, err)
	_, err = other.Embed(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (core.Vector, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, core.Vector) error {
	return errors.New("cache down")
}

func TestClient_CacheFailuresAreBypassed(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(4)
	client, err := NewClient(embedder, WithCache(failingCache{}))
	require.NoError(t, err)

	v, err := client.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, 4)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(mock.NewMockEmbedder(), WithMinDimension(0))
	assert.Error(t, err)

	_, err = NewClient(mock.NewMockEmbedder(), WithTimeout(-time.Second))
	assert.Error(t, err)
}
