package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of progress event.
type EventKind string

const (
	EventTurnStart       EventKind = "turn_start"
	EventModelWaiting    EventKind = "model_waiting"
	EventAssistantText   EventKind = "assistant_text"
	EventToolStart       EventKind = "tool_start"
	EventToolEnd         EventKind = "tool_end"
	EventTodoUpdated     EventKind = "todo_updated"
	EventSubagentStart   EventKind = "subagent_start"
	EventSubagentEnd     EventKind = "subagent_end"
	EventTruncationRetry EventKind = "truncation_retry"
	EventLoopDetected    EventKind = "loop_detected"
	EventDone            EventKind = "done"
	EventFatal           EventKind = "fatal"
)

// Event is a typed progress event emitted by a loop. Depth is 0 for the
// top-level loop and increases by one per subagent nesting level, so hosts
// consuming a shared stream can tell parent and child traffic apart.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	LoopID    string         `json:"loop_id"`
	Depth     int            `json:"depth"`
	Data      map[string]any `json:"data,omitempty"`
}

// Emitter delivers progress events to the host application via a buffered
// channel. Presentation (spinners, progress lines) is strictly a consumer
// concern; the loop never blocks on a slow or absent consumer.
type Emitter struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Emitter{ch: make(chan Event, bufferSize)}
}

// Emit sends an event. If the emitter is nil, closed, or the buffer is
// full, the event is dropped.
func (e *Emitter) Emit(kind EventKind, loopID string, depth int, data map[string]any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		LoopID:    loopID,
		Depth:     depth,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Buffer full; drop rather than stall the loop.
	}
}

// Events returns the read-only event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
