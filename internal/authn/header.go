package authn

import (
	"errors"
	"strings"
)

var (
	ErrEmptyToken    = errors.New("empty token")
	ErrUnknownScheme = errors.New("unsupported authorization scheme")
)

// ParseHeader extracts the token from "Bearer <token>" or "Basic <token>".
// The scheme is case insensitive.
func ParseHeader(h string) (string, error) {
	scheme, value, _ := strings.Cut(strings.TrimSpace(h), " ")

	switch strings.ToLower(scheme) {
	case "bearer", "basic":
	default:
		return "", ErrUnknownScheme
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyToken
	}

	return value, nil
}
