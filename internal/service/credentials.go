package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/pkg/security"
	"bitwise74/marketplace-auth/pkg/util"
	"bitwise74/marketplace-auth/pkg/validators"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultRecoveryLifetime = time.Hour
	slugAttempts            = 5
)

type Credentials struct {
	users            repository.UserStore
	hasher           security.Hasher
	recoveryLifetime time.Duration
	now              func() time.Time
}

type CredentialsOpts struct {
	RecoveryLifetime time.Duration
	Now              func() time.Time
}

func NewCredentials(users repository.UserStore, hasher security.Hasher, o CredentialsOpts) *Credentials {
	if o.RecoveryLifetime <= 0 {
		o.RecoveryLifetime = DefaultRecoveryLifetime
	}

	if o.Now == nil {
		o.Now = utcNow
	}

	return &Credentials{
		users:            users,
		hasher:           hasher,
		recoveryLifetime: o.RecoveryLifetime,
		now:              o.Now,
	}
}

func userLookup(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}

	return u, err
}

func (s *Credentials) UserByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, ErrUserNotFound
	}

	return userLookup(s.users.GetByID(ctx, id))
}

func (s *Credentials) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = validators.NormalizeEmail(email)
	if email == "" {
		return nil, invalidArgument(validators.ErrEmailEmpty)
	}

	return userLookup(s.users.GetByEmail(ctx, email))
}

// LoginWithEmail returns the user owning email if password matches. A user
// without a local password always fails with ErrInvalidCredentials.
func (s *Credentials) LoginWithEmail(ctx context.Context, email, password string) (*model.User, error) {
	if password == "" {
		return nil, invalidArgument(validators.ErrPasswordEmpty)
	}

	user, err := s.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.verify(user, password); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Credentials) verify(user *model.User, password string) error {
	if !user.HasPassword() {
		return ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		zap.L().Warn("Stored password hash is unreadable", zap.Int64("userID", user.ID), zap.Error(err))
		return ErrInvalidCredentials
	}

	if !ok {
		return ErrInvalidCredentials
	}

	return nil
}

// ChangePassword replaces the password of userID. Callers are expected to
// have authenticated the request already.
func (s *Credentials) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	if _, err := s.UserByID(ctx, userID); err != nil {
		return err
	}

	if err := validators.PasswordShape(newPassword); err != nil {
		return invalidArgument(err)
	}

	return s.setPassword(ctx, userID, newPassword)
}

// ChangePasswordChecked is ChangePassword guarded by the current password
func (s *Credentials) ChangePasswordChecked(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.verify(user, oldPassword); err != nil {
		return err
	}

	if err := validators.PasswordShape(newPassword); err != nil {
		return invalidArgument(err)
	}

	return s.setPassword(ctx, userID, newPassword)
}

func (s *Credentials) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	err = s.users.SetPasswordHash(ctx, userID, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}

	return err
}

// GenerateRecoveryHash mints and stores a fresh recovery hash for userID,
// replacing any previous one
func (s *Credentials) GenerateRecoveryHash(ctx context.Context, userID int64) (string, error) {
	if _, err := s.UserByID(ctx, userID); err != nil {
		return "", err
	}

	now := s.now()
	nonce := uuid.NewString() + strconv.FormatInt(userID, 10) + strconv.FormatInt(now.UnixNano(), 10)

	hash, err := s.hasher.Hash(nonce)
	if err != nil {
		return "", fmt.Errorf("failed to hash recovery nonce, %w", err)
	}

	err = s.users.SetRecoveryHash(ctx, userID, hash, now.Add(s.recoveryLifetime))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUserNotFound
	}

	if err != nil {
		return "", err
	}

	return hash, nil
}

// ChangePasswordUsingHash redeems a recovery hash. The hash is cleared in the
// same statement that writes the new password, so it works at most once. An
// unknown or expired hash fails with ErrUserNotFound whatever the password.
func (s *Credentials) ChangePasswordUsingHash(ctx context.Context, recoveryHash, newPassword string) error {
	user, err := userLookup(s.users.GetByRecoveryHash(ctx, recoveryHash, s.now()))
	if err != nil {
		return err
	}

	if err := validators.PasswordShape(newPassword); err != nil {
		return invalidArgument(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	err = s.users.RedeemRecoveryHash(ctx, user.ID, recoveryHash, hash)
	if errors.Is(err, repository.ErrNotFound) {
		// Someone else redeemed it first
		return ErrUserNotFound
	}

	return err
}

type RegisterOpts struct {
	Email    string
	Name     string
	Password string // empty creates an invited user without a local password
}

func (s *Credentials) Register(ctx context.Context, o RegisterOpts) (*model.User, error) {
	email := validators.NormalizeEmail(o.Email)
	if err := validators.EmailValidator(email); err != nil {
		return nil, invalidArgument(err)
	}

	var hash *string
	if o.Password != "" {
		if err := validators.PasswordShape(o.Password); err != nil {
			return nil, invalidArgument(err)
		}

		h, err := s.hasher.Hash(o.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password, %w", err)
		}
		hash = &h
	}

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user is registered, %w", err)
	}

	if taken {
		return nil, ErrEmailTaken
	}

	name := strings.TrimSpace(o.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		Slug:         slug,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	return user, nil
}

func (s *Credentials) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := util.Slugify(name)
	slug := base

	for range slugAttempts {
		taken, err := s.users.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check slug, %w", err)
		}

		if !taken {
			return slug, nil
		}

		slug, err = util.SlugWithSuffix(base)
		if err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("no free slug for %q", base)
}
