package authn

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"bitwise74/marketplace-auth/internal/model"
)

// Identity is the claim set attached to an authenticated request
type Identity struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Slug    string `json:"slug"`
	IsAdmin bool   `json:"isAdmin"`
	// Hash is a stable per-user fingerprint of the claims
	Hash string `json:"hash"`
}

func claimsHash(id int64, email string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(id, 10) + ":" + email))
	return hex.EncodeToString(sum[:])
}

func NewIdentity(u *model.User) *Identity {
	return &Identity{
		UserID:  u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Slug:    u.Slug,
		IsAdmin: u.IsAdmin,
		Hash:    claimsHash(u.ID, u.Email),
	}
}
