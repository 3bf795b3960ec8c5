package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/ai/mock"
	"github.com/poiesic/profmatch/answer"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/embedding"
	"github.com/poiesic/profmatch/index"
	"github.com/poiesic/profmatch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 4

type recordingMonitor struct {
	mu        sync.Mutex
	hits      []int
	retrieved []error
	generated []error
}

func (m *recordingMonitor) Retrieved(hits int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, hits)
	m.retrieved = append(m.retrieved, err)
}

func (m *recordingMonitor) Generated(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated = append(m.generated, err)
}

type fixture struct {
	pipeline  *Pipeline
	gateway   *index.Gateway
	embedder  *mock.MockEmbedder
	generator *mock.MockGenerator
	monitor   *recordingMonitor
}

// newFixture wires a pipeline whose question embedding is always queryVec.
func newFixture(t *testing.T, queryVec []float32, opts ...Option) *fixture {
	t.Helper()

	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})
	gateway, err := index.NewGateway(store, index.WithDimension(dim))
	require.NoError(t, err)

	embedder := mock.NewMockEmbedderWithDimension(dim)
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return queryVec, nil
	}
	client, err := embedding.NewClient(embedder)
	require.NoError(t, err)

	generator := mock.NewMockGenerator("ok")
	composer, err := answer.NewComposer(generator)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	p, err := NewPipeline(client, gateway, composer, append([]Option{WithMonitor(monitor)}, opts...)...)
	require.NoError(t, err)

	return &fixture{pipeline: p, gateway: gateway, embedder: embedder, generator: generator, monitor: monitor}
}

func (f *fixture) add(t *testing.T, name, dept string, vec core.Vector) {
	t.Helper()
	err := f.gateway.Upsert(context.Background(), name, vec, &core.InstructorRecord{
		Name:           name,
		Department:     dept,
		RatingRaw:      "4.0",
		ReviewSnippets: []string{name + " review"},
	})
	require.NoError(t, err)
}

func question(q string) []core.ConversationMessage {
	return []core.ConversationMessage{
		{Role: core.RoleAssistant, Content: answer.WelcomeMessage},
		{Role: core.RoleUser, Content: q},
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	client, err := embedding.NewClient(mock.NewMockEmbedder())
	require.NoError(t, err)
	composer, err := answer.NewComposer(mock.NewMockGenerator())
	require.NoError(t, err)
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer backend.Close()
	defer store.Close()
	gateway, err := index.NewGateway(store)
	require.NoError(t, err)

	_, err = NewPipeline(nil, gateway, composer)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewPipeline(client, nil, composer)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewPipeline(client, gateway, nil)
	assert.ErrorIs(t, err, ErrComposerRequired)
	_, err = NewPipeline(client, gateway, composer, WithTopK(0))
	assert.Error(t, err)

	p, err := NewPipeline(client, gateway, composer)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, p.TopK())
}

func TestRetrieve_TopThreeDescending(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})
	f.add(t, "Far", "History", core.Vector{0, 1, 0, 0})
	f.add(t, "Close", "Physics", core.Vector{0.9, 0.1, 0, 0})
	f.add(t, "Exact", "Computer Science", core.Vector{1, 0, 0, 0})
	f.add(t, "Middle", "Math", core.Vector{0.6, 0.6, 0, 0})

	result, err := f.pipeline.Retrieve(context.Background(), "who is best?")
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, []string{"Exact", "Close", "Middle"}, []string{result[0].Key, result[1].Key, result[2].Key})
	assert.GreaterOrEqual(t, result[0].Score, result[1].Score)
	assert.GreaterOrEqual(t, result[1].Score, result[2].Score)
	assert.Equal(t, []int{3}, f.monitor.hits)
}

func TestAnswer_SingleMatch(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})
	err := f.gateway.Upsert(context.Background(), "J. Doe", core.Vector{1, 0, 0, 0}, &core.InstructorRecord{
		Name:           "J. Doe",
		Department:     "Computer Science",
		RatingRaw:      "4.5",
		ReviewSnippets: []string{"Great lectures"},
	})
	require.NoError(t, err)

	f.generator.GenerateStreamFunc = func(_ context.Context, req ai.GenerationRequest, onChunk func(string) error) error {
		if !strings.Contains(req.System, "Only 1 of the 3 requested instructors were found.") {
			return fmt.Errorf("context block missing count")
		}
		for _, c := range []string{"1. Name: J. Doe", "\nOnly one matching instructor was found, fewer than 3."} {
			if err := onChunk(c); err != nil {
				return err
			}
		}
		return nil
	}

	turn, err := f.pipeline.Answer(context.Background(), question("Who teaches Computer Science well?"))
	require.NoError(t, err)

	require.Len(t, turn.Results, 1)
	assert.Equal(t, "J. Doe", turn.Results[0].Record.Name)
	assert.Equal(t, "Who teaches Computer Science well?", turn.Question)
	assert.Equal(t, strings.Join([]string{
		"Only 1 of the 3 requested instructors were found.",
		"1. Name: J. Doe",
		"   Department: Computer Science",
		"   Rating: 4.5",
		"   Review: Great lectures",
	}, "\n"), turn.Context)

	content, err := turn.Collect(nil)
	require.NoError(t, err)
	assert.Contains(t, content, "J. Doe")
	assert.Contains(t, content, "fewer than 3")

	assert.Equal(t, []error{nil}, f.monitor.generated)
	assert.Equal(t, question("Who teaches Computer Science well?"), f.generator.LastRequest().History)
}

func TestAnswer_ColdStart(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})

	turn, err := f.pipeline.Answer(context.Background(), question("Who teaches Biology?"))
	require.NoError(t, err)

	assert.Empty(t, turn.Results)
	assert.Empty(t, turn.Context)

	content, err := turn.Collect(nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Contains(t, f.generator.LastRequest().System, "Retrieved instructors:\n(none)")
}

func TestAnswer_EmbeddingFailureAbortsTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, ai.ErrServiceUnavailable
	}

	turn, err := f.pipeline.Answer(context.Background(), question("anyone?"))
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, f.generator.CallCount(), "no answer without context")
	assert.Equal(t, []int{0}, f.monitor.hits)
}

func TestAnswer_InvalidInput(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})

	_, err := f.pipeline.Answer(context.Background(), nil)
	assert.ErrorIs(t, err, answer.ErrEmptyHistory)

	_, err = f.pipeline.Answer(context.Background(), question("   "))
	assert.ErrorIs(t, err, core.ErrEmbeddingRejected)
	assert.True(t, core.IsUserError(err))
}

func TestAnswer_DimensionMismatch(t *testing.T) {
	f := newFixture(t, []float32{1, 0})

	_, err := f.pipeline.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestTurn_InterruptedStream(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})
	f.generator.Chunks = []string{"partial"}
	f.generator.FailAfter = ai.ErrServiceUnavailable

	turn, err := f.pipeline.Answer(context.Background(), question("q"))
	require.NoError(t, err)

	conv := core.NewConversation(question("q")...)
	content, err := turn.Collect(conv)
	assert.Equal(t, "partial", content)
	assert.ErrorIs(t, err, core.ErrGenerationInterrupted)
	require.Len(t, f.monitor.generated, 1)
	assert.ErrorIs(t, f.monitor.generated[0], core.ErrGenerationInterrupted)
}

func TestTurn_Close(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0, 0})
	turn, err := f.pipeline.Answer(context.Background(), question("q"))
	require.NoError(t, err)

	turn.Close()
	turn.Close()
	assert.Len(t, f.monitor.generated, 1)
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil, 3))

	result := core.RetrievalResult{
		{Key: "A", Record: core.InstructorRecord{Name: "A", Department: "D1", RatingRaw: "5"}},
		{Key: "B", Record: core.InstructorRecord{Name: "B", Department: "D2", RatingRaw: "4", ReviewSnippets: []string{"r1", "r2"}}},
	}
	want := strings.Join([]string{
		"1. Name: A",
		"   Department: D1",
		"   Rating: 5",
		"",
		"2. Name: B",
		"   Department: D2",
		"   Rating: 4",
		"   Review: r1",
		"   Review: r2",
	}, "\n")
	assert.Equal(t, want, FormatContext(result, 2))
	assert.True(t, strings.HasPrefix(FormatContext(result, 3), "Only 2 of the 3"))
}
