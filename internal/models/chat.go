package models

import "time"

// ChatStatus is the lifecycle state of a chat surface.
type ChatStatus string

const (
	// ChatStatusIdle means the surface accepts a new message.
	ChatStatusIdle ChatStatus = "idle"
	// ChatStatusAwaitingResponse means a message was sent and no fragment has arrived yet.
	ChatStatusAwaitingResponse ChatStatus = "awaiting-response"
	// ChatStatusStreaming means fragments of the reply are arriving.
	ChatStatusStreaming ChatStatus = "streaming"
	// ChatStatusError means the last exchange could not be started. The surface accepts a new message.
	ChatStatusError ChatStatus = "error"
)

// AcceptsInput reports whether a new message may be submitted in this status.
func (s ChatStatus) AcceptsInput() bool {
	return s == ChatStatusIdle || s == ChatStatusError
}

// Busy reports whether an exchange is in flight.
func (s ChatStatus) Busy() bool {
	return s == ChatStatusAwaitingResponse || s == ChatStatusStreaming
}

// WaitlistStatus is the lifecycle state of the waitlist form.
type WaitlistStatus string

const (
	WaitlistStatusIdle       WaitlistStatus = "idle"
	WaitlistStatusSubmitting WaitlistStatus = "submitting"
	WaitlistStatusSuccess    WaitlistStatus = "success"
)

// WaitlistEntry is a lead captured by the waitlist form.
type WaitlistEntry struct {
	Name        string
	Email       string
	SubmittedAt time.Time
}

// ShareData is the fixed payload offered to the platform share sheet.
type ShareData struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// DefaultShareURL is the landing page address shared with friends.
const DefaultShareURL = "https://www.visionarydirector.com"

// DefaultShareData returns the share payload pointing at url. An empty url falls back to DefaultShareURL.
func DefaultShareData(url string) ShareData {
	if url == "" {
		url = DefaultShareURL
	}
	return ShareData{
		Title: "Visionary Director",
		Text:  "Join the waitlist for Visionary Director - The future of AI Model Aggregation.",
		URL:   url,
	}
}
