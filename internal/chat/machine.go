package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visionarydirector/concierge/internal/models"
)

// Event drives a Machine from one status to the next.
type Event string

const (
	// EventSend is fired when a message is submitted.
	EventSend Event = "send"
	// EventFragment is fired for every fragment of the reply.
	EventFragment Event = "fragment"
	// EventEnd is fired when the reply stream is exhausted.
	EventEnd Event = "end"
	// EventFail is fired when the exchange could not be carried out.
	EventFail Event = "fail"
)

// ErrInvalidTransition is returned when an event is not allowed in the current status.
var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[models.ChatStatus]map[Event]models.ChatStatus{
	models.ChatStatusIdle: {
		EventSend: models.ChatStatusAwaitingResponse,
	},
	models.ChatStatusError: {
		EventSend: models.ChatStatusAwaitingResponse,
	},
	models.ChatStatusAwaitingResponse: {
		EventFragment: models.ChatStatusStreaming,
		EventEnd:      models.ChatStatusIdle,
		EventFail:     models.ChatStatusError,
	},
	models.ChatStatusStreaming: {
		EventFragment: models.ChatStatusStreaming,
		EventEnd:      models.ChatStatusIdle,
		EventFail:     models.ChatStatusError,
	},
}

// Machine holds the authoritative status of a chat surface.
type Machine struct {
	mu     sync.Mutex
	status models.ChatStatus
}

// NewMachine returns a machine in ChatStatusIdle.
func NewMachine() *Machine {
	return &Machine{status: models.ChatStatusIdle}
}

// Status returns the current status.
func (m *Machine) Status() models.ChatStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

// Fire applies ev and returns the new status. The status is left unchanged when ev is not allowed.
func (m *Machine) Fire(ev Event) (models.ChatStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.status][ev]
	if !ok {
		return m.status, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, m.status)
	}
	m.status = next
	return next, nil
}
