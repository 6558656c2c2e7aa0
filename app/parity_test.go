package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitwise74/marketplace-auth/app"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteStrategy(t *testing.T, f *fixture, secret string) authn.Strategy {
	t.Helper()

	s, err := authn.New(authn.KindRemote, authn.Options{
		Dev: authn.DevFallback{Enabled: true, Token: devToken, Email: devEmail},
		Remote: authn.RemoteOptions{
			BaseURL:         f.srv.URL + "/api/auth",
			Timeout:         time.Second,
			MaxRetries:      1,
			RetryInterval:   time.Millisecond,
			AssertionSecret: []byte(secret),
		},
	})
	require.NoError(t, err)

	return s
}

// Both strategies must agree on every credential, the remote one talking to
// a local instance over HTTP
func TestLocalRemoteParity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "ana@example.com", "correct-horse")
	f.register(t, devEmail, "")
	valid := f.login(t, "ana@example.com", "correct-horse")

	now := time.Now().UTC()
	insert := func(userID int64, token string, expireAt time.Time) {
		require.NoError(t, f.d.Store.Sessions.Create(ctx, &model.SessionToken{
			UserID:      userID,
			Token:       token,
			Fingerprint: "fp",
			IPAddress:   "127.0.0.1",
			UserAgent:   "test",
			CreatedAt:   now.Add(-2 * time.Hour),
			ExpireAt:    expireAt,
		}))
	}

	ana, err := f.d.Credentials.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	insert(ana.ID, "expired-token", now.Add(-time.Hour))
	insert(424242, "orphaned-token", now.Add(time.Hour))

	local := f.d.Auth
	remote := remoteStrategy(t, f, secret)

	headers := map[string]string{
		"valid":          "Bearer " + valid,
		"lowercase":      "bearer " + valid,
		"basic":          "Basic " + valid,
		"expired":        "Bearer expired-token",
		"orphaned":       "Bearer orphaned-token",
		"unknown":        "Bearer no-such-token",
		"empty":          "",
		"blank":          "   ",
		"scheme only":    "Bearer",
		"unknown scheme": "Token " + valid,
		"dev token":      "Bearer " + devToken,
	}

	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			lid, lerr := local.Authenticate(ctx, header)
			rid, rerr := remote.Authenticate(ctx, header)

			lreason, _ := authn.ReasonOf(lerr)
			rreason, _ := authn.ReasonOf(rerr)
			assert.Equal(t, lreason, rreason, "local: %v, remote: %v", lerr, rerr)

			if lerr == nil {
				require.NoError(t, rerr)
				assert.Equal(t, *lid, *rid)
			}
		})
	}
}

func TestParityWithoutDevAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, lerr := f.d.Auth.Authenticate(ctx, "Bearer "+devToken)
	_, rerr := remoteStrategy(t, f, secret).Authenticate(ctx, "Bearer "+devToken)

	lreason, _ := authn.ReasonOf(lerr)
	rreason, _ := authn.ReasonOf(rerr)
	assert.Equal(t, authn.InvalidSession, lreason)
	assert.Equal(t, lreason, rreason)
}

func TestRemoteRejectsForeignAssertions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")
	token := f.login(t, "ana@example.com", "correct-horse")

	_, err := remoteStrategy(t, f, "some-other-secret").Authenticate(context.Background(), "Bearer "+token)
	reason, _ := authn.ReasonOf(err)
	assert.Equal(t, authn.AuthenticationError, reason)
}

func TestRemoteClientOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com", "correct-horse")

	c, err := authn.NewClient(authn.RemoteOptions{BaseURL: f.srv.URL + "/api/auth", Timeout: time.Second})
	require.NoError(t, err)

	id, err := c.LoginWithEmail(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)

	tok, err := c.IssueToken(ctx, "ana@example.com", "correct-horse", "phone")
	require.NoError(t, err)
	assert.Equal(t, "phone", tok.Fingerprint)

	require.NoError(t, c.ChangePassword(ctx, tok.Token, "correct-horse", "battery-staple"))

	_, err = c.LoginWithEmail(ctx, "ana@example.com", "correct-horse")
	var se *authn.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	require.NoError(t, c.SendRecoveryMail(ctx, "ana@example.com"))

	got, err := c.GetByID(ctx, id.UserID)
	require.NoError(t, err)
	assert.Equal(t, *id, *got)
}

func TestRemoteInstanceHasNoAuthRoutes(t *testing.T) {
	upstream := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testConfig()
	cfg.Auth.Strategy = "remote"
	cfg.Auth.Remote.BaseURL = upstream.srv.URL + "/api/auth"
	cfg.Auth.Remote.Timeout = time.Second

	d, err := internal.NewDeps(ctx, cfg, testutil.NewDB(t))
	require.NoError(t, err)
	assert.Equal(t, authn.KindRemote, d.Auth.Kind())

	f := &fixture{d: d}
	f.srv = httptest.NewServer(app.NewRouter(ctx, cfg, d))
	t.Cleanup(f.srv.Close)

	resp, _ := f.do(t, request{method: http.MethodGet, path: "/api/auth/getByEmail/ana@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Bearer tokens are still checked, against the upstream instance
	upstream.register(t, "ana@example.com", "correct-horse")
	token := upstream.login(t, "ana@example.com", "correct-horse")

	resp, _ = f.do(t, request{method: http.MethodGet, path: "/api/validate", token: token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
