package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/visionarydirector/concierge"
	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/waitlist"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// GatewayFactory creates the model gateway of a new page view. Every page view talks to the model
// through its own gateway, so that each visitor gets a separate conversation.
type GatewayFactory func() chat.Gateway

// publisher is the part of the SSE server the handlers publish through.
type publisher interface {
	Publish(msg *sse.Message, topics ...string) error
}

// Main handles the landing page: it renders the HTML templates, keeps one chat surface and waitlist
// form per page view and pushes their updates to the browser over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	events    publisher
	templates *template.Template
	markdown  goldmark.Markdown

	views    *views
	gateways GatewayFactory
	recorder waitlist.Recorder

	shareData     models.ShareData
	viewTTL       time.Duration
	waitlistDelay time.Duration

	rootLogger  *slog.Logger
	logger      *slog.Logger
	stopJanitor context.CancelFunc
}

// Option configures Main.
type Option func(*Main)

// DefaultViewTTL is how long a page view without an open event stream is kept.
const DefaultViewTTL = 30 * time.Minute

const (
	errLoggerKey = "err"

	janitorInterval = time.Minute
)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Main) {
		m.logger = logger
	}
}

// WithViewTTL overrides DefaultViewTTL.
func WithViewTTL(ttl time.Duration) Option {
	return func(m *Main) {
		m.viewTTL = ttl
	}
}

// WithWaitlistDelay overrides the simulated waitlist submission delay.
func WithWaitlistDelay(d time.Duration) Option {
	return func(m *Main) {
		m.waitlistDelay = d
	}
}

// WithShareURL overrides the URL offered by the share button.
func WithShareURL(url string) Option {
	return func(m *Main) {
		if url != "" {
			m.shareData = models.DefaultShareData(url)
		}
	}
}

// NewMain creates a new Main instance. Each page view gets a gateway from gateways, and accepted waitlist
// entries are handed to recorder. It initializes the SSE server, parses the HTML templates from the
// embedded filesystem and starts evicting idle page views until Shutdown is called.
func NewMain(gateways GatewayFactory, recorder waitlist.Recorder, opts ...Option) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		concierge.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	sseSrv := &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			// Each page view only receives the updates of its own surface and form
			topics := []string{sse.DefaultTopic, viewTopic(s.Req.URL.Query().Get("view_id"))}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}

	m := Main{
		sseSrv:    sseSrv,
		events:    sseSrv,
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
			),
		),
		views:         newViews(),
		gateways:      gateways,
		recorder:      recorder,
		shareData:     models.DefaultShareData(models.DefaultShareURL),
		viewTTL:       DefaultViewTTL,
		waitlistDelay: waitlist.DefaultDelay,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.rootLogger = m.logger
	m.logger = m.logger.With(slog.String("module", "main"))

	ctx, cancel := context.WithCancel(context.Background())
	m.stopJanitor = cancel
	go m.janitor(ctx)

	return m, nil
}

func viewTopic(viewID string) string {
	return fmt.Sprintf("view-%s", viewID)
}

// Shutdown gracefully terminates the Main instance. It closes every page view, broadcasts a close message
// to all connected clients and waits up to 5 seconds for connections to terminate. After the timeout,
// any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.stopJanitor()
	for _, v := range m.views.removeAll() {
		v.close()
	}

	e := &sse.Message{Type: sse.Type("closeView")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func (m Main) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.evictIdleViews(now)
		}
	}
}

func (m Main) evictIdleViews(now time.Time) int {
	evicted := m.views.evictIdle(now.Add(-m.viewTTL))
	for _, v := range evicted {
		v.close()
	}
	if len(evicted) > 0 {
		m.logger.Debug("Evicted idle page views", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (m Main) publish(viewID string, eventType string, data string) {
	msg := &sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(data)
	if err := m.events.Publish(msg, viewTopic(viewID)); err != nil {
		m.logger.Error("Failed to publish event",
			slog.String("viewID", viewID),
			slog.String("event", eventType),
			slog.String(errLoggerKey, err.Error()))
	}
}
