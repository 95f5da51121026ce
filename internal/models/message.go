package models

import "time"

// Message represents an individual entry of the concierge conversation. The Content of a model message
// grows while its reply is streamed and is never touched again once the stream has finished.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed (or picked from the suggestions) by the visitor.
	RoleUser Role = "user"
	// RoleModel represents a message produced by the hosted model, or the synthetic welcome message.
	RoleModel Role = "model"
)

// WelcomeMessageID is the identifier of the synthetic greeting every conversation starts with.
const WelcomeMessageID = "welcome"

// WelcomeMessage returns the greeting that seeds a new conversation. It is not generated by the model.
func WelcomeMessage() Message {
	return Message{
		ID:   WelcomeMessageID,
		Role: RoleModel,
		Content: "I’m an AI assistant running on Google Gemini, embedded here on VisionaryDirector.com " +
			"to help you explore what we’re building.\n\n" +
			"In the future, you’ll be able to choose which model powers me — Gemini, GPT-4.1, Claude, " +
			"or others — using your own API keys.",
		Timestamp: time.Now(),
	}
}
