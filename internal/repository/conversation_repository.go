package repository

import (
	"context"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	ListDirectMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error)
	ListMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error)
	ListOtherParticipants(ctx context.Context, conversationID, excludeUserID string) ([]models.ConversationParticipant, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Conversation, error)
	FindDirect(ctx context.Context, a, b string) (string, error)
	CreateDirect(ctx context.Context, creatorID, targetID string, at time.Time) (*models.Conversation, error)
	CreateGroup(ctx context.Context, conversation *models.Conversation, memberIDs []string) error
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) ListDirectMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ? AND conversations.is_group = ?", userID, false).
		Order("conversations.updated_at DESC").
		Find(&participants).Error
	return participants, err
}

func (r *conversationRepository) ListMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&participants).Error
	return participants, err
}

func (r *conversationRepository) ListOtherParticipants(ctx context.Context, conversationID, excludeUserID string) ([]models.ConversationParticipant, error) {
	if !validID(conversationID) {
		return []models.ConversationParticipant{}, nil
	}
	var participants []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id <> ?", conversationID, excludeUserID).
		Find(&participants).Error
	return participants, err
}

func (r *conversationRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Conversation, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []models.Conversation{}, nil
	}
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// FindDirect looks the pair up in the direct conversation index.
func (r *conversationRepository) FindDirect(ctx context.Context, a, b string) (string, error) {
	if !validID(a) || !validID(b) {
		return "", apperr.NotFound("direct conversation")
	}
	low, high := models.OrderedPair(a, b)
	var row models.DirectConversation
	err := r.db.WithContext(ctx).Where("user_low = ? AND user_high = ?", low, high).First(&row).Error
	if err != nil {
		return "", notFound(err, "direct conversation")
	}
	return row.ConversationID, nil
}

// CreateDirect inserts the conversation, both participants and the pair index
// row in one transaction. ErrPairExists means another transaction won.
func (r *conversationRepository) CreateDirect(ctx context.Context, creatorID, targetID string, at time.Time) (*models.Conversation, error) {
	conversation := &models.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   false,
		CreatedBy: creatorID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	low, high := models.OrderedPair(creatorID, targetID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ID: uuid.NewString(), ConversationID: conversation.ID, UserID: creatorID, JoinedAt: at, Role: models.RoleMember},
			{ID: uuid.NewString(), ConversationID: conversation.ID, UserID: targetID, JoinedAt: at, Role: models.RoleMember},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		return tx.Create(&models.DirectConversation{UserLow: low, UserHigh: high, ConversationID: conversation.ID}).Error
	})
	if isUniqueViolation(err) {
		return nil, ErrPairExists
	}
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (r *conversationRepository) CreateGroup(ctx context.Context, conversation *models.Conversation, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		participants := make([]models.ConversationParticipant, 0, len(memberIDs)+1)
		participants = append(participants, models.ConversationParticipant{
			ID: uuid.NewString(), ConversationID: conversation.ID, UserID: conversation.CreatedBy,
			JoinedAt: conversation.CreatedAt, Role: models.RoleAdmin,
		})
		for _, id := range memberIDs {
			participants = append(participants, models.ConversationParticipant{
				ID: uuid.NewString(), ConversationID: conversation.ID, UserID: id,
				JoinedAt: conversation.CreatedAt, Role: models.RoleMember,
			})
		}
		return tx.Create(&participants).Error
	})
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if !validID(conversationID) || !validID(userID) {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}
