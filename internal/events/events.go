package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	TypeStarted Type = "started"
	TypeStopped Type = "stopped"
	TypeOnline  Type = "online"
	TypeOffline Type = "offline"
	TypeMotion  Type = "motion"
	TypeCleared Type = "cleared"
	TypeTest    Type = "test"
)

type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Emitter delivers an event to an external sink. Implementations absorb
// delivery failures; the run loop never sees them.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

type NoopEmitter struct{}

func (NoopEmitter) Emit(ctx context.Context, event Event) {}

// Recorder observes events locally, independent of delivery.
type Recorder interface {
	Record(event Event)
}

type NoopRecorder struct{}

func (NoopRecorder) Record(event Event) {}

type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) Multi {
	return Multi{recorders: recorders}
}

func (m Multi) Record(event Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}

// Ring keeps the most recent events in memory for the control API.
// Nothing is persisted; a restart starts empty.
type Ring struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	count int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

func (r *Ring) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = event
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Recent returns the retained events, oldest first.
func (r *Ring) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
