// Package waitlist implements the lead-capture form of the landing page.
package waitlist

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/visionarydirector/concierge/internal/models"
)

// DefaultDelay is how long a submission pretends to travel over the network.
const DefaultDelay = 1500 * time.Millisecond

const errLoggerKey = "err"

// Recorder keeps accepted waitlist entries.
type Recorder interface {
	Record(ctx context.Context, entry models.WaitlistEntry) error
}

// LogRecorder only logs the entries it receives.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record implements Recorder.
func (l LogRecorder) Record(_ context.Context, entry models.WaitlistEntry) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Waitlist submission",
		slog.String("name", entry.Name),
		slog.String("email", entry.Email))
	return nil
}

// Form is one waitlist form. A form goes idle → submitting → success once and stays there.
type Form struct {
	recorder Recorder
	delay    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	status    models.WaitlistStatus
	listeners []func(models.WaitlistStatus)
	timer     *time.Timer
	done      chan struct{}
}

// Option configures a Form.
type Option func(*Form)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(f *Form) {
		f.delay = d
	}
}

// WithLogger sets the form logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		f.logger = logger
	}
}

// NewForm creates an idle form handing accepted entries to recorder.
func NewForm(recorder Recorder, opts ...Option) *Form {
	f := &Form{
		recorder: recorder,
		delay:    DefaultDelay,
		logger:   slog.Default(),
		status:   models.WaitlistStatusIdle,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("module", "waitlist"))
	return f
}

// Listen registers fn for every subsequent status change.
func (f *Form) Listen(fn func(models.WaitlistStatus)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listeners = append(f.listeners, fn)
}

// Status returns the current status.
func (f *Form) Status() models.WaitlistStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.status
}

// Done is closed once the form reaches the success status.
func (f *Form) Done() <-chan struct{} {
	return f.done
}

// Submit starts the simulated submission and reports whether it did. A blank name or email, or a form
// that is not idle, makes Submit a no-op: nothing changes and no timer is started.
func (f *Form) Submit(name, email string) bool {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return false
	}

	f.mu.Lock()
	if f.status != models.WaitlistStatusIdle {
		f.mu.Unlock()
		return false
	}
	f.status = models.WaitlistStatusSubmitting
	entry := models.WaitlistEntry{Name: name, Email: email}
	f.timer = time.AfterFunc(f.delay, func() { f.complete(entry) })
	listeners := f.listeners
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(models.WaitlistStatusSubmitting)
	}
	return true
}

// Close stops a pending submission. A closed form never reaches success.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Form) complete(entry models.WaitlistEntry) {
	entry.SubmittedAt = time.Now()
	if err := f.recorder.Record(context.Background(), entry); err != nil {
		f.logger.Error("Failed to record waitlist entry",
			slog.String("email", entry.Email),
			slog.String(errLoggerKey, err.Error()))
	}

	f.mu.Lock()
	f.status = models.WaitlistStatusSuccess
	f.timer = nil
	listeners := f.listeners
	close(f.done)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(models.WaitlistStatusSuccess)
	}
}
