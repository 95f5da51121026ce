package handlers

import (
	"sync"
	"time"

	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/waitlist"
)

// view is one rendering of the landing page in a browser.
type view struct {
	id      string
	surface *chat.Surface
	form    *waitlist.Form

	mu       sync.Mutex
	lastSeen time.Time
	streams  int
	// pendingID is the model message of the exchange in progress, empty when idle.
	pendingID string
	// published is the last status sent to the browser.
	published models.ChatStatus
}

func (v *view) touch() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastSeen = time.Now()
}

// openStream marks an event stream as connected and returns the function that marks it as closed.
func (v *view) openStream() func() {
	v.mu.Lock()
	v.streams++
	v.lastSeen = time.Now()
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		v.streams--
		v.lastSeen = time.Now()
		v.mu.Unlock()
	}
}

// idleSince reports whether the view has had no open stream nor any request since cutoff.
func (v *view) idleSince(cutoff time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.streams == 0 && v.lastSeen.Before(cutoff) && !v.surface.Status().Busy()
}

func (v *view) close() {
	v.surface.Close()
	v.form.Close()
}

// views is the registry of live page views.
type views struct {
	mu sync.RWMutex
	m  map[string]*view
}

func newViews() *views {
	return &views{m: make(map[string]*view)}
}

func (vs *views) add(v *view) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.m[v.id] = v
}

func (vs *views) get(id string) (*view, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	v, ok := vs.m[id]
	return v, ok
}

func (vs *views) len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	return len(vs.m)
}

func (vs *views) evictIdle(cutoff time.Time) []*view {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	var evicted []*view
	for id, v := range vs.m {
		if v.idleSince(cutoff) {
			evicted = append(evicted, v)
			delete(vs.m, id)
		}
	}
	return evicted
}

func (vs *views) removeAll() []*view {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	all := make([]*view, 0, len(vs.m))
	for _, v := range vs.m {
		all = append(all, v)
	}
	vs.m = make(map[string]*view)
	return all
}
