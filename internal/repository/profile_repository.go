package repository

import (
	"context"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"

	"gorm.io/gorm"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	Search(ctx context.Context, excludeID, term string, limit int) ([]models.Profile, error)
	List(ctx context.Context, excludeID string, limit int) ([]models.Profile, error)
	SetOnline(ctx context.Context, id string, online bool, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if !validID(id) {
		return nil, apperr.NotFound("profile")
	}
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, notFound(err, "profile")
	}
	return &profile, nil
}

func (r *profileRepository) Exists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *profileRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) Search(ctx context.Context, excludeID, term string, limit int) ([]models.Profile, error) {
	pattern := containsPattern(term)
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("(full_name ILIKE ? OR username ILIKE ?)", pattern, pattern).
		Order("full_name ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) List(ctx context.Context, excludeID string, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Order("is_online DESC").
		Order("full_name ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) SetOnline(ctx context.Context, id string, online bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": at}).Error
}

// Touch refreshes last_seen. The profiles trigger only notifies when
// is_online, full_name or avatar_url change, so a heartbeat on an online
// profile stays off the change feed.
func (r *profileRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE profiles SET last_seen = ?, is_online = true
		WHERE id = ?`, at, id).Error
}

func (r *profileRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE profiles SET is_online = false
		WHERE is_online AND (last_seen IS NULL OR last_seen < ?)`, cutoff)
	return res.RowsAffected, res.Error
}
