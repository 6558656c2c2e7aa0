package authn

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AssertionHeader carries a signed copy of the identity on resolve responses
const AssertionHeader = "X-Identity-Assertion"

var ErrAssertionMismatch = errors.New("identity assertion does not match response")

type assertionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignAssertion signs a short lived HS256 token vouching for id
func SignAssertion(secret []byte, id *Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, assertionClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return t.SignedString(secret)
}

// VerifyAssertion checks that raw was signed with secret and names id
func VerifyAssertion(secret []byte, raw string, id *Identity) error {
	if raw == "" {
		return errors.New("missing identity assertion")
	}

	var claims assertionClaims

	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid identity assertion, %w", err)
	}

	if claims.Subject != strconv.FormatInt(id.UserID, 10) || claims.Email != id.Email {
		return ErrAssertionMismatch
	}

	return nil
}
