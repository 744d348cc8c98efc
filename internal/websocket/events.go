package websocket

import (
	"time"

	"alumninexus/server/internal/notify"
)

// EventType represents different WebSocket event types
type EventType string

const (
	// Session events
	EventSnapshot             = EventType(notify.EventSnapshot)
	EventConnectionsUpdated   = EventType(notify.EventConnectionsUpdated)
	EventRequestsUpdated      = EventType(notify.EventRequestsUpdated)
	EventContactsUpdated      = EventType(notify.EventContactsUpdated)
	EventContactStatus        = EventType(notify.EventContactStatus)
	EventMessagesLoaded       = EventType(notify.EventMessagesLoaded)
	EventMessageAppended      = EventType(notify.EventMessageAppended)
	EventMessageUpdated       = EventType(notify.EventMessageUpdated)
	EventConversationResolved = EventType(notify.EventConversationResolved)
	EventNotice               = EventType(notify.EventNotice)

	// Typing events
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"

	// Error events
	EventError = EventType(notify.EventError)
)

// Commands sent by clients
const (
	CommandLoadMessages            EventType = "load_messages"
	CommandSendMessage             EventType = "send_message"
	CommandResolveConversation     EventType = "resolve_conversation"
	CommandSendConnectionRequest   EventType = "send_connection_request"
	CommandAcceptConnectionRequest EventType = "accept_connection_request"
	CommandRejectConnectionRequest EventType = "reject_connection_request"
	CommandRefreshContacts         EventType = "refresh_contacts"
	CommandHeartbeat               EventType = "heartbeat"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// TypingPayload represents typing indicator payload
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IncomingMessage represents messages received from clients
type IncomingMessage struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// String returns a payload field as a string, or "" when missing.
func (m IncomingMessage) String(key string) string {
	v, _ := m.Payload[key].(string)
	return v
}
