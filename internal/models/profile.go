package models

import (
	"strings"
	"time"

	"alumninexus/server/internal/apperr"
)

// Principal is the authenticated actor every operation runs on behalf of.
type Principal struct {
	UserID string
}

// Validate fails with ErrAuthRequired when there is no current user.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return apperr.ErrAuthRequired
	}
	return nil
}

// Profile is the identity record of a member.
type Profile struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	FullName  string     `json:"full_name"`
	AvatarURL *string    `json:"avatar_url"`
	Username  *string    `json:"username"`
	Bio       *string    `json:"bio"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// DisplayName falls back to a placeholder for profiles without a name.
func (p *Profile) DisplayName() string {
	if p == nil || strings.TrimSpace(p.FullName) == "" {
		return "Unknown User"
	}
	return p.FullName
}

// PresenceStatus is the online flag rendered as a contact status.
func (p *Profile) PresenceStatus() PresenceStatus {
	if p != nil && p.IsOnline {
		return StatusOnline
	}
	return StatusOffline
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
