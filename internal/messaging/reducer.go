package messaging

import (
	"sort"

	"alumninexus/server/internal/models"
)

// EventKind tags where a history change came from.
type EventKind string

const (
	LocalLoaded    EventKind = "local:loaded"
	LocalSent      EventKind = "local:sent"
	RemoteInserted EventKind = "remote:inserted"
	RemoteUpdated  EventKind = "remote:updated"
)

// Event is one input to the Reducer. Loaded events carry Messages, the
// others carry Message.
type Event struct {
	Kind           EventKind
	ConversationID string
	Messages       []models.Message
	Message        models.Message
}

// Reducer owns the per-conversation history of one actor. It is the only
// writer of that history, whichever path an event took.
//
// Remote inserts authored by the actor are never appended: the local:sent
// event for the same message already represents them. Any event whose id is
// already cached is dropped as well.
type Reducer struct {
	actor   string
	history map[string][]models.ChatMessage
}

func NewReducer(actor string) *Reducer {
	return &Reducer{actor: actor, history: make(map[string][]models.ChatMessage)}
}

// Apply folds e into the history. It returns the affected message and
// whether anything changed. Loaded events return the zero message.
func (r *Reducer) Apply(e Event) (models.ChatMessage, bool) {
	switch e.Kind {
	case LocalLoaded:
		loaded := make([]models.ChatMessage, 0, len(e.Messages))
		for i := range e.Messages {
			loaded = append(loaded, e.Messages[i].ToChatMessage(r.actor, r.statusOf(&e.Messages[i])))
		}
		r.history[e.ConversationID] = loaded
		return models.ChatMessage{}, true

	case LocalSent:
		return r.appendOnce(e.Message, models.MessageSent)

	case RemoteInserted:
		if e.Message.SenderID == r.actor {
			return models.ChatMessage{}, false
		}
		return r.appendOnce(e.Message, models.MessageDelivered)

	case RemoteUpdated:
		list := r.history[e.Message.ConversationID]
		for i := range list {
			if list[i].ID != e.Message.ID {
				continue
			}
			list[i].Text = e.Message.Content
			list[i].IsEdited = e.Message.IsEdited
			list[i].IsDeleted = e.Message.IsDeleted
			return list[i], true
		}
	}
	return models.ChatMessage{}, false
}

// Messages returns a copy of the cached history of a conversation.
func (r *Reducer) Messages(conversationID string) []models.ChatMessage {
	return append([]models.ChatMessage{}, r.history[conversationID]...)
}

// Conversations lists the conversations with cached history.
func (r *Reducer) Conversations() []string {
	ids := make([]string, 0, len(r.history))
	for id := range r.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Reducer) statusOf(m *models.Message) models.MessageStatus {
	if m.SenderID == r.actor {
		return models.MessageSent
	}
	return models.MessageDelivered
}

func (r *Reducer) appendOnce(m models.Message, status models.MessageStatus) (models.ChatMessage, bool) {
	list := r.history[m.ConversationID]
	for _, existing := range list {
		if existing.ID == m.ID {
			return models.ChatMessage{}, false
		}
	}
	chat := m.ToChatMessage(r.actor, status)
	r.history[m.ConversationID] = append(list, chat)
	return chat, true
}
