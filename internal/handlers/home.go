package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/waitlist"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	// Pending is set while the model has not produced any text for the message yet.
	Pending bool
}

type suggestion struct {
	Index int
	Text  string
}

type statusData struct {
	Status string
	Label  string
	Busy   bool
	Error  string
}

type waitlistData struct {
	ViewID string
	Status string
}

type homePageData struct {
	ViewID      string
	Messages    []message
	Suggestions []suggestion
	Status      statusData
	Waitlist    waitlistData
	Share       models.ShareData
}

// HandleHome renders the landing page. Every call starts a new page view with its own chat surface,
// waitlist form and model gateway.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, err := m.newView()
	if err != nil {
		m.logger.Error("Failed to create page view", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs := v.surface.Messages()
	data := homePageData{
		ViewID:   v.id,
		Messages: make([]message, 0, len(msgs)),
		Status:   m.statusData(v.surface.Status(), nil),
		Waitlist: waitlistData{ViewID: v.id, Status: string(v.form.Status())},
		Share:    m.shareData,
	}
	for _, msg := range msgs {
		data.Messages = append(data.Messages, m.renderMessage(msg, false))
	}
	for i, s := range v.surface.Suggestions() {
		data.Suggestions = append(data.Suggestions, suggestion{Index: i, Text: s})
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleShare returns the share data of the landing page as JSON, for the browser's share sheet or its
// clipboard fallback.
func (m Main) HandleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.shareData); err != nil {
		m.logger.Error("Failed to encode share data", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleHealthz reports that the server is up, along with the number of live page views.
func (m Main) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Views  int    `json:"views"`
	}{
		Status: "ok",
		Views:  m.views.len(),
	})
}

func (m Main) newView() (*view, error) {
	v := &view{
		id:        uuid.New().String(),
		lastSeen:  time.Now(),
		published: models.ChatStatusIdle,
	}
	logger := m.rootLogger.With(slog.String("viewID", v.id))

	surface, err := chat.New(m.gateways(), chat.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat surface: %w", err)
	}
	v.surface = surface
	v.form = waitlist.NewForm(m.recorder,
		waitlist.WithDelay(m.waitlistDelay),
		waitlist.WithLogger(logger))

	surface.Listen(m.surfaceListener(v))
	v.form.Listen(m.waitlistListener(v))

	m.views.add(v)
	return v, nil
}
