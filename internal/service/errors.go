// Package service holds the credential, session and role logic on top of
// the stores in internal/repository
package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
)

func invalidArgument(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// Timestamps are compared as text by sqlite, so keep a single zone
func utcNow() time.Time {
	return time.Now().UTC()
}
