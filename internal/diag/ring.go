package diag

import (
	"sync"
	"time"
)

const defaultRingSize = 500

// Entry is a single retained diagnostic line.
type Entry struct {
	At   time.Time
	Text string
}

// Ring retains the most recent diagnostic lines in a bounded buffer. When the
// buffer is full the oldest entries are discarded. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
	nowFn   func() time.Time
}

// NewRing constructs a ring retaining up to size entries. A non-positive size
// falls back to a default retention.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{entries: make([]Entry, size), nowFn: time.Now}
}

func (r *Ring) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.count) % len(r.entries)
	r.entries[idx] = Entry{At: r.nowFn(), Text: line}
	if r.count < len(r.entries) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.entries)
	}
}

// Entries returns a copy of the retained lines, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

// Lines returns the retained line text, oldest first.
func (r *Ring) Lines() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}
