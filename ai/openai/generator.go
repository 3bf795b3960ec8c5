package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using an OpenAI-compatible chat API.
type Generator struct {
	llm         llms.Model
	temperature float64
	logger      *slog.Logger
}

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		llm:         llm,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a streaming generator using the provided configuration.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// buildMessages places the system prompt first and maps history roles
// onto chat message types. Empty messages are skipped.
func buildMessages(req ai.GenerationRequest) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.History)+1)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		role := llms.ChatMessageTypeHuman
		if m.Role == core.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	return msgs
}

// GenerateStream sends the request and forwards every streamed fragment to onChunk.
func (g *Generator) GenerateStream(ctx context.Context, req ai.GenerationRequest, onChunk func(chunk string) error) error {
	msgs := buildMessages(req)
	g.logger.Debug("starting generation", "messages", len(msgs))

	var callbackErr error
	_, err := g.llm.GenerateContent(ctx, msgs,
		llms.WithTemperature(g.temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if cbErr := onChunk(string(chunk)); cbErr != nil {
				callbackErr = cbErr
				return cbErr
			}
			return nil
		}),
	)
	if err != nil {
		if callbackErr != nil && errors.Is(err, callbackErr) {
			return callbackErr
		}
		g.logger.Error("generation failed", "err", err)
		return classify("generate", err)
	}
	return nil
}
