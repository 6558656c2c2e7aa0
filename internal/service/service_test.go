package service

import (
	"context"
	"testing"
	"time"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/internal/testutil"
	"bitwise74/marketplace-auth/pkg/security"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type env struct {
	store    *repository.Store
	hasher   security.Hasher
	clock    *fakeClock
	creds    *Credentials
	sessions *Sessions
	roles    *Roles
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hasher, err := security.NewHasher(security.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	store := repository.New(testutil.NewDB(t))
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	return &env{
		store:  store,
		hasher: hasher,
		clock:  clock,
		creds:  NewCredentials(store.Users, hasher, CredentialsOpts{Now: clock.Now}),
		sessions: NewSessions(store.Sessions, store.Users, SessionsOpts{
			Lifetime:      time.Hour,
			TouchInterval: 5 * time.Minute,
			Now:           clock.Now,
		}),
		roles: NewRoles(store.Roles, store.Users),
	}
}

// user creates an account with password pw, or none when pw is empty
func (e *env) user(t *testing.T, email, pw string) *model.User {
	t.Helper()

	u, err := e.creds.Register(context.Background(), RegisterOpts{Email: email, Password: pw})
	require.NoError(t, err)

	return u
}
