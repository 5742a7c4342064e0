// Package history records every load and save attempt so the UI can show
// what was processed recently.
//
// Two recorders exist: MemoryRecorder keeps a bounded list in process and is
// used when no database is configured; PostgresRecorder persists events to
// the processing_history table.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionLoad       Action = "load"
	ActionLoadFailed Action = "load_failed"
	ActionSave       Action = "save"
	ActionSaveFailed Action = "save_failed"
)

// Failed reports whether the action records a failure.
func (a Action) Failed() bool {
	return a == ActionLoadFailed || a == ActionSaveFailed
}

// DefaultLimit is used when Recent is called with a non-positive limit.
const DefaultLimit = 20

// Event is a single history entry.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	FileName  string    `json:"fileName"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	Error     string    `json:"error,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder stores and lists events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// prepare fills the ID and timestamp if the caller left them empty.
func prepare(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// MemoryRecorder keeps the most recent events in memory.
type MemoryRecorder struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// NewMemoryRecorder creates a recorder holding at most capacity events.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryRecorder{capacity: capacity}
}

// Record appends e, dropping the oldest event when full.
func (m *MemoryRecorder) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, prepare(e))
	if over := len(m.events) - m.capacity; over > 0 {
		m.events = append(m.events[:0], m.events[over:]...)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(limit, len(m.events))
	out := make([]Event, 0, n)
	for i := len(m.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
