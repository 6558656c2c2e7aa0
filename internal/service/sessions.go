package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/pkg/security"
)

const (
	DefaultSessionLifetime = 30 * 24 * time.Hour
	DefaultTouchInterval   = 5 * time.Minute
)

type Sessions struct {
	store         repository.SessionStore
	users         repository.UserStore
	lifetime      time.Duration
	touchInterval time.Duration
	now           func() time.Time
}

type SessionsOpts struct {
	Lifetime time.Duration
	// TouchInterval is the minimum gap between two last-access writes of the
	// same token. Negative disables refreshing.
	TouchInterval time.Duration
	Now           func() time.Time
}

func NewSessions(store repository.SessionStore, users repository.UserStore, o SessionsOpts) *Sessions {
	if o.Lifetime <= 0 {
		o.Lifetime = DefaultSessionLifetime
	}

	if o.TouchInterval == 0 {
		o.TouchInterval = DefaultTouchInterval
	}

	if o.Now == nil {
		o.Now = utcNow
	}

	return &Sessions{
		store:         store,
		users:         users,
		lifetime:      o.Lifetime,
		touchInterval: o.TouchInterval,
		now:           o.Now,
	}
}

// Issue creates a session for userID. Arguments are checked before the store
// is touched.
func (s *Sessions) Issue(ctx context.Context, userID int64, ip, userAgent, fingerprint string) (*model.SessionToken, error) {
	t, err := security.MakeSessionToken(&security.SessionTokenOpts{
		UserID:      userID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Fingerprint: fingerprint,
		Lifetime:    s.lifetime,
		Now:         s.now(),
	})
	if err != nil {
		return nil, invalidArgument(err)
	}

	// Persist a copy so the caller never sees an id from a failed insert
	row := *t
	if err := s.store.Create(ctx, &row); err != nil {
		return nil, err
	}

	t.ID = row.ID
	return t, nil
}

// Lookup returns the unexpired session row for token
func (s *Sessions) Lookup(ctx context.Context, token string) (*model.SessionToken, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	t, err := s.store.FindValid(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}

	return t, err
}

// Validate resolves token to its owner. Unknown, expired and orphaned tokens
// all fail with ErrInvalidSession.
func (s *Sessions) Validate(ctx context.Context, token string) (*model.User, error) {
	t, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.Owner(ctx, t)
}

func (s *Sessions) Owner(ctx context.Context, t *model.SessionToken) (*model.User, error) {
	user, err := s.users.GetByID(ctx, t.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}

	return user, err
}

func (s *Sessions) ListByUser(ctx context.Context, userID int64) ([]model.SessionToken, error) {
	if userID <= 0 {
		return nil, invalidArgument(security.ErrNoUserID)
	}

	return s.store.ListByUser(ctx, userID)
}

// Update replaces the stored row with id t.ID
func (s *Sessions) Update(ctx context.Context, t *model.SessionToken) error {
	if t == nil || t.ID <= 0 {
		return ErrNotFound
	}

	err := s.store.Update(ctx, t)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to update session %d, %w", t.ID, err)
	}

	return nil
}

// Touch moves the last-access stamp of t to now unless it was refreshed less
// than the touch interval ago. It reports whether a write happened.
func (s *Sessions) Touch(ctx context.Context, t *model.SessionToken) (bool, error) {
	if s.touchInterval < 0 {
		return false, nil
	}

	now := s.now()
	if now.Sub(t.LastAccessAt) < s.touchInterval {
		return false, nil
	}

	next := *t
	next.LastAccessAt = now

	if err := s.Update(ctx, &next); err != nil {
		return false, err
	}

	t.LastAccessAt = now
	return true, nil
}

// Purge hard-deletes sessions that expired more than retention ago
func (s *Sessions) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PurgeExpiredBefore(ctx, s.now().Add(-retention))
}
