package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/visionarydirector/concierge/internal/models"
)

// HandleWaitlist submits the waitlist form of a page view. It expects the "view_id", "name" and "email"
// form fields.
//
// A blank field, or a form that was already submitted, leaves the form untouched and the handler
// responds with 204. Otherwise it renders the form in its submitting state; the success state follows
// over the page view's event stream once the submission completes.
func (m Main) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
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

	if !v.form.Submit(r.FormValue("name"), r.FormValue("email")) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	err := m.templates.ExecuteTemplate(w, "waitlist", waitlistData{
		ViewID: v.id,
		Status: string(models.WaitlistStatusSubmitting),
	})
	if err != nil {
		m.logger.Error("Failed to render waitlist form", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) waitlistListener(v *view) func(models.WaitlistStatus) {
	return func(status models.WaitlistStatus) {
		// The submitting state is rendered by HandleWaitlist itself.
		if status != models.WaitlistStatusSuccess {
			return
		}

		var buf bytes.Buffer
		err := m.templates.ExecuteTemplate(&buf, "waitlist", waitlistData{
			ViewID: v.id,
			Status: string(status),
		})
		if err != nil {
			m.logger.Error("Failed to render waitlist form",
				slog.String("viewID", v.id),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		m.publish(v.id, waitlistEventType, buf.String())
	}
}
