// Package gateway wraps a hosted text-generation provider behind a single conversational session bound
// to the concierge persona.
//
// A Gateway owns at most one session. The session is created lazily by EnsureSession (or by the first
// send) and kept for the lifetime of the gateway, so every message sent through the same gateway shares
// the conversation context. Provider failures while a reply is streaming never reach the caller: the
// stream degrades into a single Apology fragment instead.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Apology is the fragment yielded in place of the rest of a reply when the provider fails mid-stream.
const Apology = "I apologize, but I'm having trouble connecting to the Visionary Director network right now. " +
	"Please try again shortly."

// DefaultThinkingBudget bounds the reasoning effort a provider may spend before answering.
const DefaultThinkingBudget = 1024

const errLoggerKey = "err"

// Session is a provider-side conversational context. Implementations remember previous exchanges of the
// same session. SendMessageStream yields text fragments in arrival order and reports a failure by
// yielding a non-nil error, after which the sequence ends.
type Session interface {
	SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error]
}

// SessionConfig is the fixed configuration a session is created with.
type SessionConfig struct {
	// Persona is the system instruction constraining every reply.
	Persona string
	// ThinkingBudget bounds the reasoning effort, in tokens. Zero disables explicit reasoning.
	ThinkingBudget int
}

// Provider creates sessions against a hosted model. NewSession should return a *ConfigurationError when
// the provider cannot be used as configured, e.g. when the credential is missing.
type Provider interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Gateway is the single entry point the chat surface uses to talk to the model.
type Gateway struct {
	provider Provider
	config   SessionConfig
	logger   *slog.Logger

	mu      sync.Mutex
	session Session
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used to report provider failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithThinkingBudget overrides DefaultThinkingBudget. Negative values are treated as zero.
func WithThinkingBudget(budget int) Option {
	return func(g *Gateway) {
		g.config.ThinkingBudget = max(budget, 0)
	}
}

// New creates a gateway for provider with the given persona. No session is created until the first
// EnsureSession or send.
func New(provider Provider, persona string, opts ...Option) *Gateway {
	g := &Gateway{
		provider: provider,
		config: SessionConfig{
			Persona:        persona,
			ThinkingBudget: DefaultThinkingBudget,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("module", "gateway"))
	return g
}

// EnsureSession creates the session if none exists yet. Calling it again once a session exists is a
// no-op. Failures are returned as is and are not retried; a missing or invalid credential is reported
// as an error matching ErrConfiguration.
func (g *Gateway) EnsureSession(ctx context.Context) error {
	_, err := g.ensureSession(ctx)
	return err
}

func (g *Gateway) ensureSession(ctx context.Context) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session != nil {
		return g.session, nil
	}

	session, err := g.provider.NewSession(ctx, g.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	if session == nil {
		return nil, &ConfigurationError{Message: "provider returned no session"}
	}

	g.logger.Debug("Chat session created", slog.Int("thinkingBudget", g.config.ThinkingBudget))
	g.session = session
	return session, nil
}

// HasSession reports whether a session has been created.
func (g *Gateway) HasSession() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.session != nil
}

// SendMessageStream sends text to the model and returns the reply as a lazy sequence of non-empty
// fragments. The returned error is only non-nil when no session could be created. The sequence can be
// ranged over once; ranging again yields nothing. Breaking out of the loop stops consuming fragments and
// cancels nothing else: the underlying call is bound to ctx.
func (g *Gateway) SendMessageStream(ctx context.Context, text string) (iter.Seq[string], error) {
	seq, _, err := g.stream(ctx, text)
	return seq, err
}

// stream is SendMessageStream that additionally reports, once the sequence is exhausted, whether the
// reply was degraded into an apology.
func (g *Gateway) stream(ctx context.Context, text string) (iter.Seq[string], *atomic.Bool, error) {
	session, err := g.ensureSession(ctx)
	if err != nil {
		return nil, nil, err
	}

	var used, degraded atomic.Bool
	seq := func(yield func(string) bool) {
		if used.Swap(true) {
			return
		}
		for fragment, err := range session.SendMessageStream(ctx, text) {
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				g.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
				degraded.Store(true)
				yield(Apology)
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment) {
				return
			}
		}
	}
	return seq, &degraded, nil
}
