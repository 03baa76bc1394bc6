package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCapacity is the number of attempts kept by a History.
const DefaultHistoryCapacity = 500

// Attempt is one executed (or refused) statement as reported by the caller.
type Attempt struct {
	SQL      string
	Start    time.Time
	Duration time.Duration
	RowCount *int64
	Error    string // empty on success
}

// HistoryEntry is a recorded attempt.
type HistoryEntry struct {
	ID           string    `json:"id"`
	SQL          string    `json:"sql"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMs   int64     `json:"duration_ms"`
	RowCount     *int64    `json:"row_count,omitempty"`
	IsError      bool      `json:"is_error"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// History records every statement attempt, success or failure. It has no undo
// semantics; the oldest attempt is evicted at capacity.
type History struct {
	mu      sync.Mutex
	entries *ring[HistoryEntry]
}

// NewHistory returns an empty history. A capacity below one means
// DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{entries: newRing[HistoryEntry](capacity)}
}

// Record appends a and returns the stored entry.
func (h *History) Record(a Attempt) HistoryEntry {
	ts := a.Start
	if ts.IsZero() {
		ts = time.Now()
	}
	e := HistoryEntry{
		ID:         uuid.NewString(),
		SQL:        a.SQL,
		Timestamp:  ts,
		DurationMs: a.Duration.Milliseconds(),
		RowCount:   a.RowCount,
	}
	if a.Error != "" {
		msg := a.Error
		e.IsError = true
		e.ErrorMessage = &msg
		e.RowCount = nil
	}

	h.mu.Lock()
	h.entries.push(e)
	h.mu.Unlock()
	return e
}

// Len returns the number of entries currently held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries.len()
}

// Cap returns the capacity.
func (h *History) Cap() int { return h.entries.cap() }

// List returns a copy of the entries, oldest first.
func (h *History) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries.slice()
}
