package openai

import (
	"testing"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestBuildMessages(t *testing.T) {
	req := ai.GenerationRequest{
		System: "be helpful",
		History: []core.ConversationMessage{
			{Role: core.RoleAssistant, Content: "Hi!"},
			{Role: core.RoleUser, Content: "Who teaches databases?"},
			{Role: core.RoleAssistant, Content: ""},
		},
	}

	msgs := buildMessages(req)

	require.Len(t, msgs, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[2].Role)
	assert.Equal(t, llms.TextContent{Text: "Who teaches databases?"}, msgs[2].Parts[0])
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})

	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"), ai.WithAPIKey("test"))

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.NotNil(t, p.Embedder())
	assert.NotNil(t, p.Generator())
}
