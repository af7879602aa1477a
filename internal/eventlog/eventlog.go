// Package eventlog keeps a bounded, newest-first record of the human-readable
// events the orchestrator emits.
package eventlog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/autodev/internal/events"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 50

// Category classifies a log entry.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
)

// Entry is one log line. Never mutated after Append.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
}

// Log is an append-only list capped at a fixed capacity; the oldest entry
// is evicted when the cap is exceeded. Appends are serialized; readers load
// an immutable slice and never block.
type Log struct {
	capacity int
	bus      *events.EventBus // optional
	now      func() time.Time

	mu      sync.Mutex // serializes writers
	entries atomic.Pointer[[]Entry]
}

// New creates a log holding at most capacity entries. When bus is non-nil,
// every appended entry is also published on events.TopicLog.
func New(capacity int, bus *events.EventBus) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		capacity: capacity,
		bus:      bus,
		now:      time.Now,
	}
	empty := []Entry{}
	l.entries.Store(&empty)
	return l
}

// Append records message at the front of the log.
func (l *Log) Append(message string, category Category) Entry {
	entry := Entry{
		Timestamp: l.now(),
		Message:   message,
		Category:  category,
	}

	l.mu.Lock()
	current := *l.entries.Load()
	size := min(len(current)+1, l.capacity)
	next := make([]Entry, size)
	next[0] = entry
	copy(next[1:], current)
	l.entries.Store(&next)
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.Publish(events.TopicLog, events.LogAppendedEvent{
			Message:   entry.Message,
			Category:  string(entry.Category),
			Timestamp: entry.Timestamp,
		})
	}

	return entry
}

// Info appends an info entry.
func (l *Log) Info(message string) Entry { return l.Append(message, CategoryInfo) }

// Success appends a success entry.
func (l *Log) Success(message string) Entry { return l.Append(message, CategorySuccess) }

// Error appends an error entry.
func (l *Log) Error(message string) Entry { return l.Append(message, CategoryError) }

// Entries returns the entries newest first. The returned slice is a copy.
func (l *Log) Entries() []Entry {
	current := *l.entries.Load()
	out := make([]Entry, len(current))
	copy(out, current)
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	return len(*l.entries.Load())
}

// Capacity returns the maximum number of entries kept.
func (l *Log) Capacity() int {
	return l.capacity
}
