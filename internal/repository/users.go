package repository

import (
	"context"
	"fmt"
	"time"

	"bitwise74/marketplace-auth/internal/model"

	"gorm.io/gorm"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) first(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&user).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &user, nil
}

func (r *Users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Users) GetBySlug(ctx context.Context, slug string) (*model.User, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *Users) GetByBillingID(ctx context.Context, billingID string) (*model.User, error) {
	if billingID == "" {
		return nil, ErrNotFound
	}

	return r.first(ctx, "billing_id = ?", billingID)
}

// GetByRecoveryHash only matches hashes that have not expired at now
func (r *Users) GetByRecoveryHash(ctx context.Context, hash string, now time.Time) (*model.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}

	return r.first(ctx, "recovery_hash = ? AND (recovery_expires_at IS NULL OR recovery_expires_at > ?)", hash, now.UTC())
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user, %w", translate(err))
	}

	return nil
}

func (r *Users) update(ctx context.Context, id int64, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return translate(res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Users) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *Users) SetRecoveryHash(ctx context.Context, id int64, hash string, expiresAt time.Time) error {
	return r.update(ctx, id, map[string]any{
		"recovery_hash":       hash,
		"recovery_expires_at": expiresAt.UTC(),
	})
}

func (r *Users) RedeemRecoveryHash(ctx context.Context, id int64, recoveryHash, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND recovery_hash = ?", id, recoveryHash).
		Updates(map[string]any{
			"password_hash":       passwordHash,
			"recovery_hash":       nil,
			"recovery_expires_at": nil,
		})
	if res.Error != nil {
		return translate(res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Users) SetAvatar(ctx context.Context, id int64, key string) error {
	return r.update(ctx, id, map[string]any{"avatar_key": key})
}

func (r *Users) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(model.User{}).
		Where(query, args...).
		Count(&n).
		Error
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *Users) SlugExists(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, "slug = ?", slug)
}
