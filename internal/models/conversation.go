package models

import "time"

// Conversation is a direct or group chat.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	IsGroup   bool      `json:"is_group"`
	Name      *string   `json:"name"`
	CreatedBy string    `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ConversationParticipant joins a profile to a conversation.
type ConversationParticipant struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	ConversationID string    `json:"conversation_id" gorm:"type:uuid"`
	UserID         string    `json:"user_id" gorm:"type:uuid"`
	JoinedAt       time.Time `json:"joined_at"`
	Role           string    `json:"role"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

// DirectConversation indexes a direct conversation by its ordered member pair.
type DirectConversation struct {
	UserLow        string `gorm:"primaryKey;type:uuid"`
	UserHigh       string `gorm:"primaryKey;type:uuid"`
	ConversationID string `gorm:"type:uuid"`
}

func (DirectConversation) TableName() string { return "direct_conversations" }

// OrderedPair returns the two ids in a stable order.
func OrderedPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}
