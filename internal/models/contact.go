package models

import "time"

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
)

// Connection is the edge between two profiles. At most one row exists per
// unordered pair.
type Connection struct {
	ID          string           `json:"id" gorm:"primaryKey;type:uuid"`
	RequesterID string           `json:"requester_id" gorm:"type:uuid"`
	RecipientID string           `json:"recipient_id" gorm:"type:uuid"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (Connection) TableName() string { return "connections" }

// Involves reports whether userID is either endpoint.
func (c *Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

// Other returns the endpoint that is not userID.
func (c *Connection) Other(userID string) string {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}

// ConnectionView is one row of get_user_connections.
type ConnectionView struct {
	ConnectionID    string           `json:"connection_id"`
	ConnectedUserID string           `json:"connected_user_id"`
	FullName        string           `json:"full_name"`
	AvatarURL       *string          `json:"avatar_url"`
	IsOnline        bool             `json:"is_online"`
	Status          ConnectionStatus `json:"status"`
}

// RequesterSummary is the slice of the requester profile shown with a request.
type RequesterSummary struct {
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Username  *string `json:"username"`
}

// ConnectionRequest is a pending connection addressed to the current user.
type ConnectionRequest struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	RecipientID string           `json:"recipient_id"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	Requester   RequesterSummary `json:"requester"`
}

// RelationStatus is how a directory entry relates to the current user.
type RelationStatus string

const (
	RelationNone     RelationStatus = "none"
	RelationPending  RelationStatus = "pending"
	RelationAccepted RelationStatus = "accepted"
)

// UserSearchResult is a directory entry annotated with its relation.
type UserSearchResult struct {
	ID               string         `json:"id"`
	FullName         string         `json:"full_name"`
	AvatarURL        *string        `json:"avatar_url"`
	Username         *string        `json:"username"`
	Bio              *string        `json:"bio"`
	IsOnline         bool           `json:"is_online"`
	ConnectionStatus RelationStatus `json:"connection_status"`
}

// Contact is one entry of the chat list.
type Contact struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	Name           string         `json:"name"`
	Avatar         string         `json:"avatar"`
	Status         PresenceStatus `json:"status"`
	LastMessage    string         `json:"lastMessage"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
	Unread         int64          `json:"unread"`
	IsGroup        bool           `json:"isGroup"`
}
