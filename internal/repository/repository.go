// Package repository holds the narrow store interfaces the services depend on
// and their gorm implementations
package repository

import (
	"context"
	"errors"
	"time"

	"bitwise74/marketplace-auth/internal/model"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetBySlug(ctx context.Context, slug string) (*model.User, error)
	GetByBillingID(ctx context.Context, billingID string) (*model.User, error)
	GetByRecoveryHash(ctx context.Context, hash string, now time.Time) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	SetRecoveryHash(ctx context.Context, id int64, hash string, expiresAt time.Time) error
	// RedeemRecoveryHash replaces the password and clears the recovery hash in
	// one statement. It returns ErrNotFound when hash is no longer current.
	RedeemRecoveryHash(ctx context.Context, id int64, recoveryHash, passwordHash string) error
	SetAvatar(ctx context.Context, id int64, key string) error
	EmailExists(ctx context.Context, email string) (bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type SessionStore interface {
	Create(ctx context.Context, t *model.SessionToken) error
	FindValid(ctx context.Context, token string, now time.Time) (*model.SessionToken, error)
	GetByID(ctx context.Context, id int64) (*model.SessionToken, error)
	ListByUser(ctx context.Context, userID int64) ([]model.SessionToken, error)
	Update(ctx context.Context, t *model.SessionToken) error
	PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RoleStore interface {
	Create(ctx context.Context, r *model.Role) error
	GetByID(ctx context.Context, id int64) (*model.Role, error)
	GetBySlug(ctx context.Context, slug string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
	Delete(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID int64) ([]model.Role, error)
	AddMember(ctx context.Context, userID, roleID int64) error
	RemoveMember(ctx context.Context, userID, roleID int64) error
	RemoveAllMembers(ctx context.Context, userID int64) error
	ReplaceMembers(ctx context.Context, userID int64, roleIDs []int64) error
	IsMember(ctx context.Context, userID, roleID int64) (bool, error)
}

// Store bundles the gorm implementations over one connection pool
type Store struct {
	Users    *Users
	Sessions *Sessions
	Roles    *Roles
}

func New(db *gorm.DB) *Store {
	return &Store{
		Users:    &Users{db: db},
		Sessions: &Sessions{db: db},
		Roles:    &Roles{db: db},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
