package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/visionarydirector/concierge/internal/gateway"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides chat sessions backed by the OpenAI chat completion API, or any API compatible with it
// when a base URL is given.
type OpenAI struct {
	name   string
	apiKey string
	model  string
	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

type openAISession struct {
	provider OpenAI

	mu      sync.Mutex
	history []goopenai.ChatCompletionMessage
}

// NewOpenAI creates an OpenAI provider. An empty baseURL uses the OpenAI endpoint.
func NewOpenAI(apiKey, baseURL, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		name:   "openai",
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// NewSession implements gateway.Provider. The session starts with the persona as system message.
func (o OpenAI) NewSession(_ context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	if o.apiKey == "" {
		return nil, gateway.MissingCredential(o.name, "OPENAI_API_KEY")
	}

	var history []goopenai.ChatCompletionMessage
	if cfg.Persona != "" {
		history = append(history, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: cfg.Persona,
		})
	}
	return &openAISession{provider: o, history: history}, nil
}

// SendMessageStream implements gateway.Session. The exchange is added to the session history once the
// reply has been received completely.
func (s *openAISession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: text,
		}

		s.mu.Lock()
		msgs := append(slices.Clone(s.history), userMsg)
		s.mu.Unlock()

		req := s.provider.chatRequest(msgs)

		reqJSON, err := json.Marshal(req)
		if err == nil {
			s.provider.logger.Debug("Request", slog.String("req", string(reqJSON)))
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := s.provider.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		var reply strings.Builder
		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			content := response.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			reply.WriteString(content)
			if !yield(content, nil) {
				return
			}
		}

		s.mu.Lock()
		s.history = append(s.history, userMsg, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleAssistant,
			Content: reply.String(),
		})
		s.mu.Unlock()
	}
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}

	return req
}
