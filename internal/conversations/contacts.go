package conversations

import (
	"context"
	"errors"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
)

const noMessages = "No messages yet"

// ListContacts builds the chat list of p, most recently active first.
func (s *Service) ListContacts(ctx context.Context, p models.Principal) ([]models.Contact, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	memberships, err := s.conversations.ListMemberships(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Backend("list memberships", err)
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ConversationID)
	}

	conversations, err := s.conversations.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Backend("load conversations", err)
	}
	last, err := s.messages.LastByConversations(ctx, ids)
	if err != nil {
		return nil, apperr.Backend("load last messages", err)
	}
	unread, err := s.messages.CountFromOthers(ctx, ids, p.UserID)
	if err != nil {
		return nil, apperr.Backend("count messages", err)
	}

	contacts := make([]models.Contact, 0, len(conversations))
	for _, conv := range conversations {
		contact := models.Contact{
			ConversationID: conv.ID,
			LastMessage:    noMessages,
			Unread:         unread[conv.ID],
			IsGroup:        conv.IsGroup,
			Status:         models.StatusOffline,
		}
		if m, ok := last[conv.ID]; ok {
			at := m.CreatedAt
			contact.LastMessage = m.Content
			contact.Timestamp = &at
		}

		if conv.IsGroup {
			contact.ID = conv.ID
			contact.Name = "Group Chat"
			if conv.Name != nil && *conv.Name != "" {
				contact.Name = *conv.Name
			}
			contacts = append(contacts, contact)
			continue
		}

		others, err := s.conversations.ListOtherParticipants(ctx, conv.ID, p.UserID)
		if err != nil {
			return nil, apperr.Backend("load participants", err)
		}
		if len(others) == 0 {
			continue
		}
		profile, err := s.profiles.GetByID(ctx, others[0].UserID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Backend("load participant profile", err)
		}
		contact.ID = others[0].UserID
		contact.Name = profile.DisplayName()
		contact.Status = profile.PresenceStatus()
		if profile != nil && profile.AvatarURL != nil {
			contact.Avatar = *profile.AvatarURL
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
