package mock

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/poiesic/profmatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedderWithDimension(16)

	a, err := m.EmbedText(context.Background(), "same")
	require.NoError(t, err)
	b, err := m.EmbedText(context.Background(), "same")
	require.NoError(t, err)
	c, err := m.EmbedText(context.Background(), "different")
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []string{"same", "same", "different"}, m.Texts())
}

func TestDeterministicVector_UnitLength(t *testing.T) {
	v := DeterministicVector("hello", 64)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder_CustomFuncAndReset(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedText(context.Background(), "x")
	assert.EqualError(t, err, "boom")

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)
}

func TestMockGenerator_Streams(t *testing.T) {
	g := NewMockGenerator("Hel", "lo")
	var sb strings.Builder

	err := g.GenerateStream(context.Background(), ai.GenerationRequest{System: "sys"}, func(c string) error {
		sb.WriteString(c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", sb.String())
	assert.Equal(t, 1, g.CallCount())
	assert.Equal(t, "sys", g.LastRequest().System)
}

func TestMockGenerator_FailAfter(t *testing.T) {
	g := NewMockGenerator("partial")
	g.FailAfter = ai.ErrServiceUnavailable
	var got []string

	err := g.GenerateStream(context.Background(), ai.GenerationRequest{}, func(c string) error {
		got = append(got, c)
		return nil
	})

	assert.ErrorIs(t, err, ai.ErrServiceUnavailable)
	assert.Equal(t, []string{"partial"}, got)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)

	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	assert.Same(t, mp.GetMockGenerator(), p.Generator())
	assert.NoError(t, p.Close())
}
