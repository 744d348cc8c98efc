package models

import "time"

const (
	MessageTypeText = "text"

	// MaxMessageLength bounds content in characters.
	MaxMessageLength = 4000
)

// Message is a stored chat message. Only the edit and delete flags change
// after insert.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	ConversationID string    `json:"conversation_id" gorm:"type:uuid"`
	SenderID       string    `json:"sender_id" gorm:"type:uuid"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
	IsEdited       bool      `json:"is_edited"`
	IsDeleted      bool      `json:"is_deleted"`
}

func (Message) TableName() string { return "messages" }

// MessageStatus is the client-visible delivery state.
type MessageStatus string

const (
	MessageSending   MessageStatus = "sending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// ChatMessage is a message as rendered for one viewer.
type ChatMessage struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Text           string        `json:"text"`
	Sender         string        `json:"sender"` // "user" or "other"
	SenderID       string        `json:"senderId"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         MessageStatus `json:"status"`
	IsEdited       bool          `json:"isEdited,omitempty"`
	IsDeleted      bool          `json:"isDeleted,omitempty"`
}

// ToChatMessage renders m for viewerID with the given status.
func (m *Message) ToChatMessage(viewerID string, status MessageStatus) ChatMessage {
	sender := "other"
	if m.SenderID == viewerID {
		sender = "user"
	}
	return ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Text:           m.Content,
		Sender:         sender,
		SenderID:       m.SenderID,
		Timestamp:      m.CreatedAt,
		Status:         status,
		IsEdited:       m.IsEdited,
		IsDeleted:      m.IsDeleted,
	}
}
