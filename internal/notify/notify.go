// Package notify carries session output: state events and the transient,
// user-visible notices raised after operations.
package notify

import "sync"

// EventType names an event pushed to a live session.
type EventType string

const (
	EventSnapshot             EventType = "snapshot"
	EventConnectionsUpdated   EventType = "connections_updated"
	EventRequestsUpdated      EventType = "connection_requests_updated"
	EventContactsUpdated      EventType = "contacts_updated"
	EventContactStatus        EventType = "contact_status"
	EventMessagesLoaded       EventType = "messages_loaded"
	EventMessageAppended      EventType = "message_appended"
	EventMessageUpdated       EventType = "message_updated"
	EventConversationResolved EventType = "conversation_resolved"
	EventNotice               EventType = "notice"
	EventError                EventType = "error"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a toast.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Sink receives everything a session wants to show its user.
type Sink interface {
	Emit(event EventType, payload interface{})
}

func Success(s Sink, title, description string) {
	s.Emit(EventNotice, Notice{Title: title, Description: description, Variant: VariantDefault})
}

func Failure(s Sink, description string) {
	s.Emit(EventNotice, Notice{Title: "Error", Description: description, Variant: VariantDestructive})
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(EventType, interface{}) {}

// Emitted is one recorded Emit call.
type Emitted struct {
	Event   EventType
	Payload interface{}
}

// Recorder keeps every emitted event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Emitted
}

func (r *Recorder) Emit(event EventType, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Event: event, Payload: payload})
}

func (r *Recorder) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emitted(nil), r.events...)
}

// Notices returns the recorded notices only.
func (r *Recorder) Notices() []Notice {
	var out []Notice
	for _, e := range r.Events() {
		if n, ok := e.Payload.(Notice); ok && e.Event == EventNotice {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many events of the given type were recorded.
func (r *Recorder) Count(event EventType) int {
	n := 0
	for _, e := range r.Events() {
		if e.Event == event {
			n++
		}
	}
	return n
}
