package repository

import (
	"context"
	"fmt"

	"bitwise74/marketplace-auth/db"
	"bitwise74/marketplace-auth/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Roles struct {
	db *gorm.DB
}

func NewRoles(db *gorm.DB) *Roles {
	return &Roles{db: db}
}

func (r *Roles) Create(ctx context.Context, role *model.Role) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		return fmt.Errorf("failed to create role, %w", translate(err))
	}

	return nil
}

func (r *Roles) GetByID(ctx context.Context, id int64) (*model.Role, error) {
	var role model.Role

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		return nil, translate(err)
	}

	return &role, nil
}

func (r *Roles) GetBySlug(ctx context.Context, slug string) (*model.Role, error) {
	var role model.Role

	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&role).Error; err != nil {
		return nil, translate(err)
	}

	return &role, nil
}

func (r *Roles) List(ctx context.Context) ([]model.Role, error) {
	roles := []model.Role{}

	if err := r.db.WithContext(ctx).Order("slug asc").Find(&roles).Error; err != nil {
		return nil, err
	}

	return roles, nil
}

// Delete removes the role together with every membership pointing at it
func (r *Roles) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&model.Role{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

func (r *Roles) ListForUser(ctx context.Context, userID int64) ([]model.Role, error) {
	roles := []model.Role{}

	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.slug asc").
		Find(&roles).
		Error
	if err != nil {
		return nil, err
	}

	return roles, nil
}

// AddMember is a no-op when the membership already exists
func (r *Roles) AddMember(ctx context.Context, userID, roleID int64) error {
	return addMember(r.db.WithContext(ctx), userID, roleID)
}

func addMember(tx *gorm.DB, userID, roleID int64) error {
	return tx.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, RoleID: roleID}).
		Error
}

// RemoveMember is a no-op when the membership does not exist
func (r *Roles) RemoveMember(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&model.UserRole{}).
		Error
}

func (r *Roles) RemoveAllMembers(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.UserRole{}).
		Error
}

// ReplaceMembers makes roleIDs the exact membership set of the user
func (r *Roles) ReplaceMembers(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}

		for _, id := range roleIDs {
			if err := addMember(tx, userID, id); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Roles) IsMember(ctx context.Context, userID, roleID int64) (bool, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&n).
		Error
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
