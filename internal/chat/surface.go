// Package chat implements the chat surface: the state machine that turns visitor input into exchanges
// with the model gateway and keeps the conversation store in sync with the streamed reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visionarydirector/concierge/internal/conversation"
	"github.com/visionarydirector/concierge/internal/gateway"
	"github.com/visionarydirector/concierge/internal/models"
)

// Gateway is the part of the model gateway the surface depends on.
type Gateway interface {
	Subscribe(ctx context.Context, text string, obs gateway.Observer) (*gateway.Subscription, error)
}

// Sharer performs the share action offered next to the conversation.
type Sharer interface {
	Share(ctx context.Context) error
}

var (
	// ErrEmptyMessage is returned when a blank message is submitted.
	ErrEmptyMessage = errors.New("message is required")
	// ErrBusy is returned when a message is submitted while a reply is in progress.
	ErrBusy = errors.New("a reply is already in progress")
	// ErrUnknownSuggestion is returned by SubmitSuggestion for an out of range index.
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	// ErrClosed is returned when the surface has been closed.
	ErrClosed = errors.New("chat surface is closed")
	// ErrShareUnavailable is returned by Share when no share action is configured.
	ErrShareUnavailable = errors.New("share is not available")
)

// Suggestions are the canned prompts offered under the chat.
var Suggestions = []string{
	"How does M Forms save me money?",
	"What do you mean by a Shopping Town?",
	"Can I use Gemini to direct OpenAI models?",
}

const errLoggerKey = "err"

// Update describes a change of the surface. Message is nil when only the status changed. Err is set when
// an exchange failed to start.
type Update struct {
	Status  models.ChatStatus
	Message *models.Message
	Err     error
}

// Listener is notified after every change of the surface. Listeners are called from the goroutine that
// caused the change, one update at a time per exchange.
type Listener func(Update)

// Exchange is the pair of messages a successful Submit appends to the conversation.
type Exchange struct {
	User  models.Message
	Model models.Message
}

// Surface is one chat widget instance. It owns its conversation store and talks to its own gateway.
type Surface struct {
	gateway Gateway
	sharer  Sharer
	store   *conversation.Store
	machine *Machine
	logger  *slog.Logger
	newID   func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners []Listener
	sub       *gateway.Subscription
	closed    bool
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger sets the surface logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) {
		s.logger = logger
	}
}

// WithSharer sets the share action.
func WithSharer(sharer Sharer) Option {
	return func(s *Surface) {
		s.sharer = sharer
	}
}

// WithIDGenerator replaces the uuid based message id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Surface) {
		s.newID = newID
	}
}

// New creates an idle surface whose conversation starts with the welcome message.
func New(gw Gateway, opts ...Option) (*Surface, error) {
	store, err := conversation.NewStore(models.WelcomeMessage())
	if err != nil {
		return nil, fmt.Errorf("failed to seed conversation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Surface{
		gateway: gw,
		store:   store,
		machine: NewMachine(),
		logger:  slog.Default(),
		newID:   func() string { return uuid.New().String() },
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("module", "chat"))
	return s, nil
}

// Listen registers l for every subsequent update.
func (s *Surface) Listen(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

// Status returns the current status.
func (s *Surface) Status() models.ChatStatus {
	return s.machine.Status()
}

// Messages returns the conversation, oldest first.
func (s *Surface) Messages() []models.Message {
	return s.store.Messages()
}

// Message returns the message identified by id.
func (s *Surface) Message(id string) (models.Message, bool) {
	return s.store.Message(id)
}

// Suggestions returns the canned prompts.
func (s *Surface) Suggestions() []string {
	return Suggestions
}

// SubmitSuggestion submits the i-th canned prompt, under the same rules as Submit.
func (s *Surface) SubmitSuggestion(i int) (Exchange, error) {
	if i < 0 || i >= len(Suggestions) {
		return Exchange{}, fmt.Errorf("%w: %d", ErrUnknownSuggestion, i)
	}
	return s.Submit(Suggestions[i])
}

// Submit sends text to the model. It is rejected, leaving the conversation untouched, when text is blank
// or a reply is still in progress. Otherwise a user message and an empty model message are appended and
// the reply is streamed into the latter in the background.
//
// A gateway that cannot create its session does not make Submit fail: the surface moves to the error
// status, the model message stays empty and listeners receive the error.
func (s *Surface) Submit(text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Exchange{}, ErrClosed
	}
	if !s.machine.Status().AcceptsInput() {
		s.mu.Unlock()
		return Exchange{}, ErrBusy
	}

	now := time.Now()
	ex := Exchange{
		User: models.Message{
			ID:        s.newID(),
			Role:      models.RoleUser,
			Content:   text,
			Timestamp: now,
		},
		Model: models.Message{
			ID:        s.newID(),
			Role:      models.RoleModel,
			Timestamp: now,
		},
	}
	if err := s.store.Append(ex.User); err != nil {
		s.mu.Unlock()
		return Exchange{}, fmt.Errorf("failed to add user message: %w", err)
	}
	if err := s.store.Append(ex.Model); err != nil {
		s.mu.Unlock()
		return Exchange{}, fmt.Errorf("failed to add model message: %w", err)
	}
	status, err := s.machine.Fire(EventSend)
	s.mu.Unlock()
	if err != nil {
		return Exchange{}, err
	}
	s.notify(Update{Status: status})

	sub, err := s.gateway.Subscribe(s.ctx, text, &reply{surface: s, messageID: ex.Model.ID})
	if err != nil {
		s.logger.Error("Failed to start reply",
			slog.String("messageID", ex.Model.ID),
			slog.String(errLoggerKey, err.Error()))

		s.mu.Lock()
		status, fireErr := s.machine.Fire(EventFail)
		s.mu.Unlock()
		if fireErr != nil {
			s.logger.Error("Failed to mark exchange as failed", slog.String(errLoggerKey, fireErr.Error()))
		}
		s.notify(Update{Status: status, Err: err})
		return ex, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ex, nil
	}
	if s.machine.Status().Busy() {
		s.sub = sub
	}
	s.mu.Unlock()

	return ex, nil
}

// Share runs the configured share action. Failures are logged and never touch the conversation.
func (s *Surface) Share(ctx context.Context) error {
	if s.sharer == nil {
		return ErrShareUnavailable
	}
	if err := s.sharer.Share(ctx); err != nil {
		s.logger.Warn("Share failed", slog.String(errLoggerKey, err.Error()))
	}
	return nil
}

// Close stops any reply in progress. Further submits fail with ErrClosed.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.cancel()
}

func (s *Surface) notify(u Update) {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(u)
	}
}

// reply accumulates the fragments of one model message.
type reply struct {
	surface   *Surface
	messageID string
	content   strings.Builder
}

func (r *reply) OnFragment(fragment string) {
	s := r.surface
	r.content.WriteString(fragment)

	s.mu.Lock()
	status, err := s.machine.Fire(EventFragment)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Dropped fragment",
			slog.String("messageID", r.messageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	s.store.UpdateContent(r.messageID, r.content.String())
	msg, _ := s.store.Message(r.messageID)
	s.mu.Unlock()

	s.notify(Update{Status: status, Message: &msg})
}

func (r *reply) OnComplete(c gateway.Completion) {
	s := r.surface

	s.mu.Lock()
	status, err := s.machine.Fire(EventEnd)
	s.sub = nil
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Failed to end exchange",
			slog.String("messageID", r.messageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if c.Degraded {
		s.logger.Warn("Reply degraded to apology", slog.String("messageID", r.messageID))
	}
	s.logger.Debug("Reply completed",
		slog.String("messageID", r.messageID),
		slog.Int("fragments", c.Fragments))

	s.notify(Update{Status: status})
}
