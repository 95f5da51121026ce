package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/visionarydirector/concierge/internal/gateway"
)

// Ollama provides chat sessions backed by an Ollama server.
type Ollama struct {
	host  string
	model string

	client *api.Client

	logger *slog.Logger
}

type ollamaSession struct {
	provider Ollama

	mu      sync.Mutex
	history []api.Message
}

// NewOllama creates an Ollama provider for the server at host. It fails if host is not a valid URL.
func NewOllama(host, model string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// NewSession implements gateway.Provider. Ollama needs no credential, only a reachable host, which is
// not checked until the first message is sent.
func (o Ollama) NewSession(_ context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	if o.host == "" {
		return nil, &gateway.ConfigurationError{Provider: "ollama", Message: "host is required (set it in the config file or OLLAMA_HOST)"}
	}

	var history []api.Message
	if cfg.Persona != "" {
		history = append(history, api.Message{
			Role:    "system",
			Content: cfg.Persona,
		})
	}
	return &ollamaSession{provider: o, history: history}, nil
}

// SendMessageStream implements gateway.Session by streaming the reply of the Ollama model. The exchange
// is added to the session history once the reply has been received completely.
func (s *ollamaSession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := api.Message{
			Role:    "user",
			Content: text,
		}

		s.mu.Lock()
		msgs := append(slices.Clone(s.history), userMsg)
		s.mu.Unlock()

		t := true
		req := api.ChatRequest{
			Model:    s.provider.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var reply strings.Builder
		stopped := false
		if err := s.provider.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			reply.WriteString(res.Message.Content)
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		if stopped {
			return
		}

		s.mu.Lock()
		s.history = append(s.history, userMsg, api.Message{
			Role:    "assistant",
			Content: reply.String(),
		})
		s.mu.Unlock()
	}
}
