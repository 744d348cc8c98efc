package repository

import (
	"context"

	"alumninexus/server/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	// Create inserts the message and bumps the conversation's updated_at.
	Create(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	LastByConversations(ctx context.Context, conversationIDs []string) (map[string]models.Message, error)
	CountFromOthers(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !validID(conversationID) {
		return []models.Message{}, nil
	}
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) LastByConversations(ctx context.Context, conversationIDs []string) (map[string]models.Message, error) {
	last := make(map[string]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return last, nil
	}
	var messages []models.Message
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (conversation_id) *
		FROM messages
		WHERE conversation_id IN ?
		ORDER BY conversation_id, created_at DESC`, conversationIDs).
		Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		last[m.ConversationID] = m
	}
	return last, nil
}

type conversationCount struct {
	ConversationID string
	Total          int64
}

// CountFromOthers counts, per conversation, the messages not sent by userID.
func (r *messageRepository) CountFromOthers(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}
	var rows []conversationCount
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ? AND sender_id <> ?", conversationIDs, userID).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Total
	}
	return counts, nil
}
