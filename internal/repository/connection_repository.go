package repository

import (
	"context"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"

	"gorm.io/gorm"
)

type ConnectionRepository interface {
	Create(ctx context.Context, connection *models.Connection) error
	GetByID(ctx context.Context, id string) (*models.Connection, error)
	FindBetween(ctx context.Context, a, b string) (*models.Connection, error)
	ListBetween(ctx context.Context, userID string, otherIDs []string) ([]models.Connection, error)
	ListPendingFor(ctx context.Context, recipientID string) ([]models.Connection, error)
	UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListAccepted(ctx context.Context, userID string) ([]models.ConnectionView, error)
}

type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Create inserts a connection row. A row for the same unordered pair yields
// ErrDuplicateRequest.
func (r *connectionRepository) Create(ctx context.Context, connection *models.Connection) error {
	err := r.db.WithContext(ctx).Create(connection).Error
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateRequest
	}
	return err
}

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	if !validID(id) {
		return nil, apperr.NotFound("connection")
	}
	var connection models.Connection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&connection).Error
	if err != nil {
		return nil, notFound(err, "connection")
	}
	return &connection, nil
}

func (r *connectionRepository) FindBetween(ctx context.Context, a, b string) (*models.Connection, error) {
	if !validID(a) || !validID(b) {
		return nil, apperr.NotFound("connection")
	}
	var connection models.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("updated_at DESC").
		First(&connection).Error
	if err != nil {
		return nil, notFound(err, "connection")
	}
	return &connection, nil
}

func (r *connectionRepository) ListBetween(ctx context.Context, userID string, otherIDs []string) ([]models.Connection, error) {
	otherIDs = validIDs(otherIDs)
	if len(otherIDs) == 0 {
		return []models.Connection{}, nil
	}
	var connections []models.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id IN ?) OR (recipient_id = ? AND requester_id IN ?)", userID, otherIDs, userID, otherIDs).
		Order("updated_at ASC").
		Find(&connections).Error
	return connections, err
}

func (r *connectionRepository) ListPendingFor(ctx context.Context, recipientID string) ([]models.Connection, error) {
	var connections []models.Connection
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.ConnectionPending).
		Order("created_at DESC").
		Find(&connections).Error
	return connections, err
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus, at time.Time) error {
	if !validID(id) {
		return apperr.NotFound("connection")
	}
	res := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("connection")
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return apperr.NotFound("connection")
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Connection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("connection")
	}
	return nil
}

// ListAccepted calls the get_user_connections aggregation.
func (r *connectionRepository) ListAccepted(ctx context.Context, userID string) ([]models.ConnectionView, error) {
	var views []models.ConnectionView
	err := r.db.WithContext(ctx).
		Raw(`SELECT connection_id, connected_user_id, full_name, avatar_url, is_online, status FROM get_user_connections(?)`, userID).
		Scan(&views).Error
	return views, err
}
