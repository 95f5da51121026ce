package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/visionarydirector/concierge/internal/gateway"
	"google.golang.org/genai"
)

// GeminiDefaultModel is the model the concierge runs on unless configured otherwise.
const GeminiDefaultModel = "gemini-3-pro-preview"

type geminiChat interface {
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

var newGeminiChat = func(
	ctx context.Context,
	apiKey, model string,
	config *genai.GenerateContentConfig,
) (geminiChat, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	chat, err := client.Chats.Create(ctx, model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini chat: %w", err)
	}
	return chat, nil
}

// Gemini provides chat sessions backed by the Google Gemini API. Each session is a Gemini chat, which
// keeps the conversation history on the client side of the SDK.
type Gemini struct {
	apiKey string
	model  string

	logger *slog.Logger
}

type geminiSession struct {
	chat geminiChat
}

// NewGemini creates a Gemini provider. A missing apiKey is only reported when a session is created.
func NewGemini(apiKey, model string, logger *slog.Logger) Gemini {
	if model == "" {
		model = GeminiDefaultModel
	}
	return Gemini{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		logger: logger.With(slog.String("module", "gemini")),
	}
}

// NewSession implements gateway.Provider.
func (g Gemini) NewSession(ctx context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	if g.apiKey == "" {
		return nil, gateway.MissingCredential("gemini", "GEMINI_API_KEY")
	}

	config := &genai.GenerateContentConfig{}
	if cfg.Persona != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: cfg.Persona},
			},
		}
	}
	if cfg.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(cfg.ThinkingBudget)),
		}
	}

	chat, err := newGeminiChat(ctx, g.apiKey, g.model, config)
	if err != nil {
		return nil, &gateway.ConfigurationError{Provider: "gemini", Message: "cannot start chat", Err: err}
	}

	g.logger.Debug("Gemini chat created",
		slog.String("model", g.model),
		slog.Int("thinkingBudget", cfg.ThinkingBudget))

	return geminiSession{chat: chat}, nil
}

// SendMessageStream implements gateway.Session.
func (s geminiSession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range s.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}
			fragment := extractVisibleText(resp)
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
