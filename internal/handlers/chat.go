package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
)

type exchangeData struct {
	User  message
	Model message
}

// SSE event types for real-time updates. Message events are named after the message they update.
const (
	exchangeEventType = "exchange"
	statusEventType   = "status"
	waitlistEventType = "waitlist"
)

func messageEventType(messageID string) string {
	return "message-" + messageID
}

const unavailableNotice = "The concierge is unavailable right now. Please try again."

// HandleChats accepts a visitor message, or one of the canned suggestions, for the chat surface of a
// page view.
//
// The handler expects a "view_id" form field and either a "message" or a "suggestion" index. The
// exchange itself is not part of the response: the user message, the model reply as it streams and the
// status changes all reach the browser over the page view's event stream, in order.
//
// It responds with 202 when the message was accepted, 400 for a blank message or an unknown suggestion,
// 404 for an unknown page view and 409 while a reply is still in progress.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, ok := m.views.get(r.FormValue("view_id"))
	if !ok {
		http.Error(w, "Page view not found, please reload the page", http.StatusNotFound)
		return
	}
	v.touch()

	var err error
	if s := r.FormValue("suggestion"); s != "" {
		idx, convErr := strconv.Atoi(s)
		if convErr != nil {
			http.Error(w, "Invalid suggestion", http.StatusBadRequest)
			return
		}
		_, err = v.surface.SubmitSuggestion(idx)
	} else {
		_, err = v.surface.Submit(r.FormValue("message"))
	}

	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrUnknownSuggestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, chat.ErrClosed):
		http.Error(w, "Page view not found, please reload the page", http.StatusNotFound)
	default:
		m.logger.Error("Failed to submit message",
			slog.String("viewID", v.id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE streams the updates of one page view, identified by the "view_id" query parameter. The page
// view is kept alive for as long as the stream is open.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, ok := m.views.get(r.URL.Query().Get("view_id"))
	if !ok {
		http.Error(w, "Page view not found", http.StatusNotFound)
		return
	}

	closeStream := v.openStream()
	defer closeStream()

	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) surfaceListener(v *view) chat.Listener {
	return func(u chat.Update) {
		switch {
		case u.Message != nil:
			m.publishMessage(v.id, *u.Message)
		case u.Status == models.ChatStatusAwaitingResponse:
			m.publishExchange(v)
		default:
			// The exchange is over, settle the model message even when no fragment arrived.
			v.mu.Lock()
			id := v.pendingID
			v.pendingID = ""
			v.mu.Unlock()

			if msg, ok := v.surface.Message(id); ok {
				m.publishMessage(v.id, msg)
			}
		}
		m.publishStatus(v, u)
	}
}

func (m Main) publishExchange(v *view) {
	msgs := v.surface.Messages()
	if len(msgs) < 2 {
		return
	}
	user, model := msgs[len(msgs)-2], msgs[len(msgs)-1]

	v.mu.Lock()
	v.pendingID = model.ID
	v.mu.Unlock()

	var buf bytes.Buffer
	err := m.templates.ExecuteTemplate(&buf, "exchange", exchangeData{
		User:  m.renderMessage(user, false),
		Model: m.renderMessage(model, true),
	})
	if err != nil {
		m.logger.Error("Failed to render exchange",
			slog.String("viewID", v.id),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(v.id, exchangeEventType, buf.String())
}

func (m Main) publishMessage(viewID string, msg models.Message) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, "message_content", m.renderMessage(msg, false)); err != nil {
		m.logger.Error("Failed to render message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(viewID, messageEventType(msg.ID), buf.String())
}

func (m Main) publishStatus(v *view, u chat.Update) {
	v.mu.Lock()
	changed := v.published != u.Status
	v.published = u.Status
	v.mu.Unlock()

	if !changed && u.Err == nil {
		return
	}

	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, "chat_status", m.statusData(u.Status, u.Err)); err != nil {
		m.logger.Error("Failed to render status",
			slog.String("viewID", v.id),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(v.id, statusEventType, buf.String())
}

func (m Main) statusData(status models.ChatStatus, err error) statusData {
	data := statusData{
		Status: string(status),
		Busy:   status.Busy(),
	}
	switch status {
	case models.ChatStatusAwaitingResponse:
		data.Label = "Thinking..."
	case models.ChatStatusStreaming:
		data.Label = "Typing..."
	case models.ChatStatusError:
		data.Label = "Offline"
		data.Error = unavailableNotice
	default:
		data.Label = "Online"
	}
	if err != nil {
		data.Error = unavailableNotice
	}
	return data
}

// renderMessage prepares msg for the templates. Model messages are markdown and rendered to HTML, user
// messages are shown as typed.
func (m Main) renderMessage(msg models.Message, pending bool) message {
	res := message{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Timestamp: msg.Timestamp,
		Pending:   pending && msg.Content == "",
	}

	if msg.Role != models.RoleModel {
		res.Content = template.HTML(template.HTMLEscapeString(msg.Content))
		return res
	}

	var sb strings.Builder
	if err := m.markdown.Convert([]byte(msg.Content), &sb); err != nil {
		m.logger.Error("Failed to render markdown",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		res.Content = template.HTML(template.HTMLEscapeString(msg.Content))
		return res
	}
	// goldmark escapes raw HTML unless told otherwise, so its output is safe to embed.
	res.Content = template.HTML(sb.String())
	return res
}
