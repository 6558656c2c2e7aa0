package security

import (
	"errors"
	"time"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/pkg/util"
)

const (
	tokenSize = 32
)

var (
	ErrNoUserID      = errors.New("no user ID provided")
	ErrNoIPAddress   = errors.New("no IP address provided")
	ErrNoUserAgent   = errors.New("no user agent provided")
	ErrNoFingerprint = errors.New("no fingerprint provided")
	ErrNoLifetime    = errors.New("session lifetime must be positive")
)

type SessionTokenOpts struct {
	UserID      int64
	IPAddress   string
	UserAgent   string
	Fingerprint string
	Lifetime    time.Duration
	Now         time.Time
}

// Validate reports the first problem with o. It never touches storage.
func (o *SessionTokenOpts) Validate() error {
	if o.UserID <= 0 {
		return ErrNoUserID
	}

	if o.IPAddress == "" {
		return ErrNoIPAddress
	}

	if o.UserAgent == "" {
		return ErrNoUserAgent
	}

	if o.Fingerprint == "" {
		return ErrNoFingerprint
	}

	if o.Lifetime <= 0 {
		return ErrNoLifetime
	}

	return nil
}

// MakeSessionToken builds an unsaved session row with a fresh opaque token
func MakeSessionToken(o *SessionTokenOpts) (*model.SessionToken, error) {
	if o == nil {
		return nil, errors.New("no token options provided")
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}

	token, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &model.SessionToken{
		UserID:       o.UserID,
		Token:        token,
		Fingerprint:  o.Fingerprint,
		IPAddress:    o.IPAddress,
		UserAgent:    o.UserAgent,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpireAt:     now.Add(o.Lifetime),
	}, nil
}
