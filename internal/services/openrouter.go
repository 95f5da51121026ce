package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/tmaxmax/go-sse"
	"github.com/visionarydirector/concierge/internal/gateway"
)

// OpenRouter provides chat sessions backed by OpenRouter's chat completion API.
type OpenRouter struct {
	apiKey   string
	endpoint string
	model    string

	client *http.Client

	logger *slog.Logger
}

type openRouterSession struct {
	provider  OpenRouter
	reasoning *openRouterReasoning

	mu      sync.Mutex
	history []openRouterMessage
}

type openRouterChatRequest struct {
	Model     string               `json:"model"`
	Messages  []openRouterMessage  `json:"messages"`
	Reasoning *openRouterReasoning `json:"reasoning,omitempty"`
	Stream    bool                 `json:"stream"`
}

type openRouterReasoning struct {
	MaxTokens int  `json:"max_tokens"`
	Exclude   bool `json:"exclude"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterStreamingResponse struct {
	Choices []openRouterStreamingChoice `json:"choices"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openRouterStreamingChoice struct {
	Delta openRouterMessage `json:"delta"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
)

// NewOpenRouter creates an OpenRouter provider with the specified API key and model name. An empty
// endpoint uses the public API.
func NewOpenRouter(apiKey, endpoint, model string, logger *slog.Logger) OpenRouter {
	if endpoint == "" {
		endpoint = openRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "openrouter")),
	}
}

// NewSession implements gateway.Provider. The thinking budget is forwarded as the reasoning token limit
// and the reasoning itself is excluded from the reply.
func (o OpenRouter) NewSession(_ context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	if o.apiKey == "" {
		return nil, gateway.MissingCredential("openrouter", "OPENROUTER_API_KEY")
	}

	s := &openRouterSession{provider: o}
	if cfg.Persona != "" {
		s.history = append(s.history, openRouterMessage{
			Role:    "system",
			Content: cfg.Persona,
		})
	}
	if cfg.ThinkingBudget > 0 {
		s.reasoning = &openRouterReasoning{MaxTokens: cfg.ThinkingBudget, Exclude: true}
	}
	return s, nil
}

// SendMessageStream implements gateway.Session.
func (s *openRouterSession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := openRouterMessage{
			Role:    "user",
			Content: text,
		}

		s.mu.Lock()
		msgs := append(slices.Clone(s.history), userMsg)
		s.mu.Unlock()

		resp, err := s.doRequest(ctx, msgs)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		var reply strings.Builder
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}

			if ev.Data == "[DONE]" {
				break
			}

			var res openRouterStreamingResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				yield("", fmt.Errorf("error unmarshaling response: %w", err))
				return
			}
			if res.Error != nil {
				yield("", fmt.Errorf("openrouter error %d: %s", res.Error.Code, res.Error.Message))
				return
			}

			if len(res.Choices) == 0 || res.Choices[0].Delta.Content == "" {
				continue
			}

			content := res.Choices[0].Delta.Content
			reply.WriteString(content)
			if !yield(content, nil) {
				return
			}
		}

		s.mu.Lock()
		s.history = append(s.history, userMsg, openRouterMessage{
			Role:    "assistant",
			Content: reply.String(),
		})
		s.mu.Unlock()
	}
}

func (s *openRouterSession) doRequest(ctx context.Context, msgs []openRouterMessage) (*http.Response, error) {
	reqBody := openRouterChatRequest{
		Model:     s.provider.model,
		Messages:  msgs,
		Reasoning: s.reasoning,
		Stream:    true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	s.provider.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.provider.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.provider.apiKey)
	req.Header.Set("HTTP-Referer", "https://www.visionarydirector.com")
	req.Header.Set("X-Title", "Visionary Director Concierge")

	resp, err := s.provider.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
