// Package share implements the share action of the chat widget: the platform share sheet when there is
// one, otherwise copying the landing page address to the clipboard with a short-lived confirmation.
package share

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/visionarydirector/concierge/internal/models"
)

// DefaultConfirmation is how long the "link copied" confirmation stays up.
const DefaultConfirmation = 2 * time.Second

// Native is a platform share sheet.
type Native interface {
	Share(ctx context.Context, data models.ShareData) error
}

// Clipboard receives the shared address when no share sheet is available.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Action shares fixed data through a Native sheet, falling back to a Clipboard.
type Action struct {
	data         models.ShareData
	native       Native
	clipboard    Clipboard
	confirmation time.Duration
	onCopied     func(copied bool)

	mu     sync.Mutex
	copied bool
	timer  *time.Timer
}

// Option configures an Action.
type Option func(*Action)

// WithNative sets the platform share sheet. Without it every share goes to the clipboard.
func WithNative(native Native) Option {
	return func(a *Action) {
		a.native = native
	}
}

// WithConfirmation overrides DefaultConfirmation.
func WithConfirmation(d time.Duration) Option {
	return func(a *Action) {
		a.confirmation = d
	}
}

// WithCopiedHook registers fn to be called whenever the confirmation flag changes.
func WithCopiedHook(fn func(copied bool)) Option {
	return func(a *Action) {
		a.onCopied = fn
	}
}

// NewAction creates an action sharing data, with clipboard as the fallback.
func NewAction(data models.ShareData, clipboard Clipboard, opts ...Option) *Action {
	a := &Action{
		data:         data,
		clipboard:    clipboard,
		confirmation: DefaultConfirmation,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Data returns the shared payload.
func (a *Action) Data() models.ShareData {
	return a.data
}

// Share opens the platform share sheet when available. Otherwise it copies the URL to the clipboard and
// raises the confirmation flag, which lowers itself after the confirmation delay.
func (a *Action) Share(ctx context.Context) error {
	if a.native != nil {
		if err := a.native.Share(ctx, a.data); err != nil {
			return fmt.Errorf("error sharing: %w", err)
		}
		return nil
	}

	if a.clipboard == nil {
		return fmt.Errorf("failed to copy: no clipboard available")
	}
	if err := a.clipboard.WriteText(ctx, a.data.URL); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	a.confirm()
	return nil
}

// Copied reports whether the confirmation is currently shown.
func (a *Action) Copied() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.copied
}

func (a *Action) confirm() {
	a.mu.Lock()
	a.copied = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.confirmation, a.clear)
	hook := a.onCopied
	a.mu.Unlock()

	if hook != nil {
		hook(true)
	}
}

func (a *Action) clear() {
	a.mu.Lock()
	a.copied = false
	a.timer = nil
	hook := a.onCopied
	a.mu.Unlock()

	if hook != nil {
		hook(false)
	}
}
