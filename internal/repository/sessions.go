package repository

import (
	"context"
	"fmt"
	"time"

	"bitwise74/marketplace-auth/internal/model"

	"gorm.io/gorm"
)

type Sessions struct {
	db *gorm.DB
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db}
}

func (r *Sessions) Create(ctx context.Context, t *model.SessionToken) error {
	t.CreatedAt = t.CreatedAt.UTC()
	t.LastAccessAt = t.LastAccessAt.UTC()
	t.ExpireAt = t.ExpireAt.UTC()

	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create session token, %w", translate(err))
	}

	return nil
}

// FindValid returns the row for token only if it expires after now
func (r *Sessions) FindValid(ctx context.Context, token string, now time.Time) (*model.SessionToken, error) {
	var t model.SessionToken

	err := r.db.WithContext(ctx).
		Where("token = ? AND expire_at > ?", token, now.UTC()).
		First(&t).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &t, nil
}

func (r *Sessions) GetByID(ctx context.Context, id int64) (*model.SessionToken, error) {
	var t model.SessionToken

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}

	return &t, nil
}

func (r *Sessions) ListByUser(ctx context.Context, userID int64) ([]model.SessionToken, error) {
	tokens := []model.SessionToken{}

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&tokens).
		Error
	if err != nil {
		return nil, err
	}

	return tokens, nil
}

// Update replaces every column of the row with id t.ID
func (r *Sessions) Update(ctx context.Context, t *model.SessionToken) error {
	res := r.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("id = ?", t.ID).
		Select("user_id", "token", "fingerprint", "ip_address", "user_agent", "created_at", "last_access_at", "expire_at").
		Updates(t)
	if res.Error != nil {
		return translate(res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// PurgeExpiredBefore hard-deletes rows that expired before cutoff
func (r *Sessions) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expire_at < ?", cutoff.UTC()).
		Delete(&model.SessionToken{})

	return res.RowsAffected, res.Error
}
