package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("conversations")

type Service struct {
	conversations repository.ConversationRepository
	profiles      repository.ProfileRepository
	messages      repository.MessageRepository
	now           func() time.Time
}

func NewService(conversations repository.ConversationRepository, profiles repository.ProfileRepository, messages repository.MessageRepository) *Service {
	return &Service{
		conversations: conversations,
		profiles:      profiles,
		messages:      messages,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func creationFailed(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(apperr.ErrConversationCreationFailed, err))
}

// Resolve returns the direct conversation between p and targetID, creating
// it on first contact.
//
// Existing memberships are scanned first so that conversations created
// before the pair index are still found. Creation inserts the conversation,
// both participants and the pair index row in one transaction; if the peer
// resolved concurrently, the pair index rejects the second insert and the
// winner's conversation is returned.
func (s *Service) Resolve(ctx context.Context, p models.Principal, targetID string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return "", apperr.Invalid("user id is required")
	}
	if targetID == p.UserID {
		return "", apperr.Invalid("you cannot message yourself")
	}

	exists, err := s.profiles.Exists(ctx, targetID)
	if err != nil {
		return "", creationFailed("check target", err)
	}
	if !exists {
		return "", apperr.NotFound("user")
	}

	// Only direct memberships are scanned. A group that happens to hold both
	// users is not their direct conversation, and returning it would leave
	// the pair without the one direct conversation it must have.
	memberships, err := s.conversations.ListDirectMemberships(ctx, p.UserID)
	if err != nil {
		return "", creationFailed("list memberships", err)
	}
	for _, membership := range memberships {
		others, err := s.conversations.ListOtherParticipants(ctx, membership.ConversationID, p.UserID)
		if err != nil {
			return "", creationFailed("list participants", err)
		}
		for _, other := range others {
			if other.UserID == targetID {
				return membership.ConversationID, nil
			}
		}
	}

	conversation, err := s.conversations.CreateDirect(ctx, p.UserID, targetID, s.now())
	if errors.Is(err, repository.ErrPairExists) {
		id, ferr := s.conversations.FindDirect(ctx, p.UserID, targetID)
		if ferr != nil {
			return "", creationFailed("find concurrent conversation", ferr)
		}
		log.Debugf("direct conversation %s created concurrently for %s/%s", id, p.UserID, targetID)
		return id, nil
	}
	if err != nil {
		return "", creationFailed("create conversation", err)
	}

	log.Infof("created direct conversation %s between %s and %s", conversation.ID, p.UserID, targetID)
	return conversation.ID, nil
}

// CreateGroup creates a named group conversation with p as admin.
func (s *Service) CreateGroup(ctx context.Context, p models.Principal, name string, memberIDs []string) (*models.Conversation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("group name is required")
	}

	seen := map[string]bool{p.UserID: true}
	members := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) == 0 {
		return nil, apperr.Invalid("a group needs at least one other member")
	}

	found, err := s.profiles.ListByIDs(ctx, members)
	if err != nil {
		return nil, creationFailed("check members", err)
	}
	if len(found) != len(members) {
		return nil, apperr.NotFound("group member")
	}

	now := s.now()
	conversation := &models.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   true,
		Name:      &name,
		CreatedBy: p.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.CreateGroup(ctx, conversation, members); err != nil {
		return nil, creationFailed("create group", err)
	}
	log.Infof("created group conversation %s (%d members) by %s", conversation.ID, len(members)+1, p.UserID)
	return conversation, nil
}

// IsParticipant reports whether p belongs to the conversation.
func (s *Service) IsParticipant(ctx context.Context, p models.Principal, conversationID string) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	ok, err := s.conversations.IsParticipant(ctx, conversationID, p.UserID)
	if err != nil {
		return false, apperr.Backend("check membership", err)
	}
	return ok, nil
}
