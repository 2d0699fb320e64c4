package monitor

import (
	"sort"
	"sync"
	"time"
)

// ServerStatus captures last-known runtime state for a server observed via
// events.
type ServerStatus struct {
	Name      string
	State     EventType
	Up        bool
	FirstSeen time.Time
	LastEvent time.Time
	Restarts  int
	Message   string
}

// Tracker maintains in-memory status for servers based on monitor events.
type Tracker struct {
	mu      sync.RWMutex
	servers map[string]*ServerStatus
}

func NewTracker() *Tracker {
	return &Tracker{servers: make(map[string]*ServerStatus)}
}

// Apply updates the tracker based on the supplied event.
func (t *Tracker) Apply(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.servers[evt.Server]
	if state == nil {
		state = &ServerStatus{Name: evt.Server, FirstSeen: evt.Timestamp}
		t.servers[evt.Server] = state
	}
	if evt.Timestamp.After(state.LastEvent) {
		state.LastEvent = evt.Timestamp
	}

	state.State = evt.Type
	state.Message = evt.Message
	switch evt.Type {
	case EventTypeUp:
		state.Up = true
	case EventTypeDown, EventTypeStopped, EventTypeKilled, EventTypeError:
		state.Up = false
	}
	if evt.Type == EventTypeStarting {
		state.Restarts++
	}
}

// Snapshot returns a copy of the tracked statuses keyed by server name.
func (t *Tracker) Snapshot() map[string]ServerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ServerStatus, len(t.servers))
	for name, state := range t.servers {
		out[name] = *state
	}
	return out
}

// Names returns tracked server names in sorted order.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.servers))
	for name := range t.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
