package authn

import (
	"context"
	"errors"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/service"

	"go.uber.org/zap"
)

// SessionResolver is the part of service.Sessions Local needs
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (*model.SessionToken, error)
	Owner(ctx context.Context, t *model.SessionToken) (*model.User, error)
	Touch(ctx context.Context, t *model.SessionToken) (bool, error)
}

// UserFinder is the part of service.Credentials Local needs
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type LocalOptions struct {
	Sessions SessionResolver
	Users    UserFinder
}

type Local struct {
	sessions SessionResolver
	users    UserFinder
	dev      DevFallback
}

func NewLocal(o LocalOptions, dev DevFallback) (*Local, error) {
	if o.Sessions == nil || o.Users == nil {
		return nil, errors.New("local strategy needs a session and a user store")
	}

	return &Local{sessions: o.Sessions, users: o.Users, dev: dev}, nil
}

func (l *Local) Kind() Kind { return KindLocal }

func (l *Local) Authenticate(ctx context.Context, header string) (*Identity, error) {
	return authenticate(ctx, header, l.dev, l)
}

func (l *Local) byToken(ctx context.Context, token string) (*Identity, error) {
	t, err := l.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, noUser(err)
	}

	u, err := l.sessions.Owner(ctx, t)
	if err != nil {
		return nil, noUser(err)
	}

	// A failed refresh does not fail the request
	if _, err := l.sessions.Touch(ctx, t); err != nil {
		zap.L().Warn("Failed to refresh session last access", zap.Int64("sessionID", t.ID), zap.Error(err))
	}

	return NewIdentity(u), nil
}

func (l *Local) byEmail(ctx context.Context, email string) (*Identity, error) {
	u, err := l.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, noUser(err)
	}

	return NewIdentity(u), nil
}

func noUser(err error) error {
	if errors.Is(err, service.ErrInvalidSession) || errors.Is(err, service.ErrUserNotFound) {
		return errors.Join(errNoUser, err)
	}

	return err
}
