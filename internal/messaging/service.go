package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("messaging")

// Service reads and writes conversation history on behalf of a principal.
type Service struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	now           func() time.Time
}

func NewService(messages repository.MessageRepository, conversations repository.ConversationRepository) *Service {
	return &Service{
		messages:      messages,
		conversations: conversations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) requireMember(ctx context.Context, p models.Principal, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return apperr.Invalid("conversation id is required")
	}
	ok, err := s.conversations.IsParticipant(ctx, conversationID, p.UserID)
	if err != nil {
		return apperr.Backend("check membership", err)
	}
	if !ok {
		return apperr.NotFound("conversation")
	}
	return nil
}

// LoadMessages returns the conversation history oldest first.
func (s *Service) LoadMessages(ctx context.Context, p models.Principal, conversationID string) ([]models.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, p, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Backend("load messages", err)
	}
	return messages, nil
}

// SendMessage stores a text message. The conversation's updated_at moves to
// the message time in the same transaction.
func (s *Service) SendMessage(ctx context.Context, p models.Principal, conversationID, content string) (*models.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	// Content is plain text and stored as typed; clients never render it
	// as markup.
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("message must not be empty")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, apperr.Invalid("message must be at most %d characters", models.MaxMessageLength)
	}
	if err := s.requireMember(ctx, p, conversationID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       p.UserID,
		Content:        content,
		MessageType:    models.MessageTypeText,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperr.Backend("insert message", err)
	}
	log.Debugf("message %s sent to %s by %s", message.ID, conversationID, p.UserID)
	return message, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.conversations.IsParticipant(ctx, conversationID, userID)
}
