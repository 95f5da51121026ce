package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/tmaxmax/go-sse"
	"github.com/visionarydirector/concierge/internal/gateway"
)

// Anthropic provides chat sessions backed by the Anthropic messages API. It handles streaming replies
// using Claude models.
type Anthropic struct {
	apiKey    string
	endpoint  string
	model     string
	maxTokens int

	client *http.Client

	logger *slog.Logger
}

type anthropicSession struct {
	provider Anthropic
	system   string
	thinking *anthropicThinking

	mu      sync.Mutex
	history []anthropicMessage
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Thinking  *anthropicThinking `json:"thinking,omitempty"`
	Stream    bool               `json:"stream"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"

	// anthropicMinThinkingBudget is the smallest thinking budget the API accepts.
	anthropicMinThinkingBudget = 1024
)

// NewAnthropic creates an Anthropic provider with the specified API key, model name, and maximum token
// limit. An empty endpoint uses the public API.
func NewAnthropic(apiKey, endpoint, model string, maxTokens int, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:    strings.TrimSpace(apiKey),
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{},
		logger:    logger.With(slog.String("module", "anthropic")),
	}
}

// NewSession implements gateway.Provider. Extended thinking is enabled when the budget is at least the
// API minimum and fits below the token limit.
func (a Anthropic) NewSession(_ context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	if a.apiKey == "" {
		return nil, gateway.MissingCredential("anthropic", "ANTHROPIC_API_KEY")
	}

	s := &anthropicSession{
		provider: a,
		system:   cfg.Persona,
	}
	if cfg.ThinkingBudget >= anthropicMinThinkingBudget && cfg.ThinkingBudget < a.maxTokens {
		s.thinking = &anthropicThinking{
			Type:         "enabled",
			BudgetTokens: cfg.ThinkingBudget,
		}
	}
	return s, nil
}

// SendMessageStream implements gateway.Session by streaming text deltas from the messages API.
func (s *anthropicSession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := anthropicMessage{
			Role:    "user",
			Content: text,
		}

		s.mu.Lock()
		msgs := append(slices.Clone(s.history), userMsg)
		s.mu.Unlock()

		reqBody := anthropicChatRequest{
			Model:     s.provider.model,
			Messages:  msgs,
			Stream:    true,
			System:    s.system,
			MaxTokens: s.provider.maxTokens,
			Thinking:  s.thinking,
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.provider.endpoint+"/messages", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", s.provider.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := s.provider.client.Do(req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield("", fmt.Errorf("anthropic returned status %d", resp.StatusCode))
			return
		}

		var reply strings.Builder
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("error unmarshaling error: %w", err))
					return
				}
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				s.remember(userMsg, reply.String())
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield("", fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				if res.Delta.Type != "text_delta" || res.Delta.Text == "" {
					continue
				}
				reply.WriteString(res.Delta.Text)
				if !yield(res.Delta.Text, nil) {
					return
				}
			default:
				continue
			}
		}
		yield("", fmt.Errorf("stream ended before message_stop"))
	}
}

func (s *anthropicSession) remember(user anthropicMessage, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, user, anthropicMessage{
		Role:    "assistant",
		Content: reply,
	})
}
