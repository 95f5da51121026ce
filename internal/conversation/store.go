// Package conversation holds the in-memory message log of a single page view.
package conversation

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/visionarydirector/concierge/internal/models"
)

// ErrDuplicateID is returned by Append when a message with the same identifier is already stored.
var ErrDuplicateID = errors.New("duplicate message id")

// Store is an ordered, append-only sequence of messages. Insertion order is display order. The only
// mutation allowed after insertion is replacing the content of a record, which is how streamed replies
// are reflected. Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int
}

// NewStore creates a store seeded with the given messages, in order.
func NewStore(seed ...models.Message) (*Store, error) {
	s := &Store{
		index: make(map[string]int),
	}
	for _, msg := range seed {
		if err := s.Append(msg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Append inserts msg at the end of the conversation.
func (s *Store) Append(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[msg.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return nil
}

// UpdateContent replaces the content of the message identified by id. It reports whether a message was
// updated; an unknown id is silently ignored.
func (s *Store) UpdateContent(id, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[id]
	if !ok {
		return false
	}
	s.messages[idx].Content = content
	return true
}

// Messages returns a snapshot of the conversation, oldest first.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.messages)
}

// Message returns the message identified by id.
func (s *Store) Message(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.messages[idx], true
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}
