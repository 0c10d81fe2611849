// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventContent    EventKind = "content"
	EventToolStart  EventKind = "tool_start"
	EventToolResult EventKind = "tool_result"
	EventStatus     EventKind = "status"
	EventError      EventKind = "error"
)

// Event is progress reported during a turn.
type Event struct {
	Kind EventKind

	// Text is the content fragment, status line, tool result or error.
	Text string

	// Tool and CallID are set on tool events.
	Tool   string
	CallID string
}

// EventSink receives the events of a session. Emit is called from the
// goroutine running the turn.
type EventSink interface {
	Emit(Event)
}

// DiscardSink drops every event.
type DiscardSink struct{}

func (DiscardSink) Emit(Event) {}

// WriterSink renders events as terminal text.
type WriterSink struct {
	W io.Writer

	// Verbose also prints tool results.
	Verbose bool
}

func (s WriterSink) Emit(e Event) {
	switch e.Kind {
	case EventContent:
		io.WriteString(s.W, e.Text)
	case EventToolStart:
		fmt.Fprintf(s.W, "\n[%s]\n", e.Tool)
	case EventToolResult:
		if s.Verbose {
			fmt.Fprintf(s.W, "[%s result]\n%s\n", e.Tool, e.Text)
		}
	case EventStatus:
		fmt.Fprintf(s.W, "\n(%s)\n", e.Text)
	case EventError:
		fmt.Fprintf(s.W, "\n%s\n", e.Text)
	}
}

// RecordingSink keeps every event in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *RecordingSink) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *RecordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Session is one conversation. Its History is owned by the Orchestrator
// while a turn runs; callers must not run two turns on a session at once.
type Session struct {
	ID      string
	History []llm.Message
	Events  EventSink
}

// NewSession returns an empty session with a fresh ID. A nil sink
// discards events.
func NewSession(events EventSink) *Session {
	if events == nil {
		events = DiscardSink{}
	}
	return &Session{ID: uuid.NewString(), Events: events}
}

func (s *Session) emit(e Event) {
	if s.Events != nil {
		s.Events.Emit(e)
	}
}
