package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func cheapArgon() *ArgonHash {
	return &ArgonHash{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func hashers() map[string]Hasher {
	return map[string]Hasher{
		"argon2id": cheapArgon(),
		"bcrypt":   NewBcrypt(bcrypt.MinCost),
	}
}

func TestHashVerify(t *testing.T) {
	passwords := []string{"a", "hunter22", "correct horse battery staple", "żółć-ąę", " spaced "}

	for name, h := range hashers() {
		t.Run(name, func(t *testing.T) {
			for _, p := range passwords {
				enc, err := h.Hash(p)
				require.NoError(t, err)

				// Short inputs turn up in the salt and digest by chance
				if len(p) >= 8 {
					assert.NotContains(t, enc, p)
				}

				ok, err := h.Verify(p, enc)
				require.NoError(t, err)
				assert.True(t, ok, p)

				for _, q := range passwords {
					if q == p {
						continue
					}

					ok, err := h.Verify(q, enc)
					require.NoError(t, err)
					assert.False(t, ok, "%q verified against hash of %q", q, p)
				}
			}
		})
	}
}

func TestHashIsSalted(t *testing.T) {
	for name, h := range hashers() {
		a, err := h.Hash("same password")
		require.NoError(t, err)

		b, err := h.Hash("same password")
		require.NoError(t, err)

		assert.NotEqual(t, a, b, name)
	}
}

func TestArgonEncoding(t *testing.T) {
	enc, err := NewArgon().Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "$argon2id$v=19$m=65536,t=3,p=2$"))

	_, err = cheapArgon().Verify("pw", "$argon2id$broken")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestNewBcryptClampsCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewBcrypt(0).Cost)
	assert.Equal(t, DefaultBcryptCost, NewBcrypt(99).Cost)
	assert.Equal(t, 10, NewBcrypt(10).Cost)
}

func TestMultiHasherVerifiesBoth(t *testing.T) {
	m, err := NewHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	m.argon = cheapArgon()

	fromBcrypt, err := m.Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fromBcrypt, "$2a$"))

	fromArgon, err := m.argon.Hash("pw")
	require.NoError(t, err)

	for _, enc := range []string{fromBcrypt, fromArgon} {
		ok, err := m.Verify("pw", enc)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = m.Verify("pw", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestNewHasherUnknown(t *testing.T) {
	_, err := NewHasher("md5", 0)
	assert.Error(t, err)
}

func TestMakeSessionToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tok, err := MakeSessionToken(&SessionTokenOpts{
		UserID:      1,
		IPAddress:   "127.0.0.1",
		UserAgent:   "UA",
		Fingerprint: "fp",
		Lifetime:    time.Hour,
		Now:         now,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, tok.UserID)
	assert.Len(t, tok.Token, tokenSize*2)
	assert.Equal(t, now, tok.CreatedAt)
	assert.Equal(t, now, tok.LastAccessAt)
	assert.Equal(t, now.Add(time.Hour), tok.ExpireAt)
	assert.Zero(t, tok.ID)
}

func TestSessionTokenOptsValidate(t *testing.T) {
	valid := SessionTokenOpts{UserID: 1, IPAddress: "127.0.0.1", UserAgent: "UA", Fingerprint: "fp", Lifetime: time.Hour}

	tests := map[string]struct {
		mutate func(o *SessionTokenOpts)
		want   error
	}{
		"zero user":         {func(o *SessionTokenOpts) { o.UserID = 0 }, ErrNoUserID},
		"negative user":     {func(o *SessionTokenOpts) { o.UserID = -5 }, ErrNoUserID},
		"no ip":             {func(o *SessionTokenOpts) { o.IPAddress = "" }, ErrNoIPAddress},
		"no user agent":     {func(o *SessionTokenOpts) { o.UserAgent = "" }, ErrNoUserAgent},
		"no fingerprint":    {func(o *SessionTokenOpts) { o.Fingerprint = "" }, ErrNoFingerprint},
		"no lifetime":       {func(o *SessionTokenOpts) { o.Lifetime = 0 }, ErrNoLifetime},
		"negative lifetime": {func(o *SessionTokenOpts) { o.Lifetime = -time.Second }, ErrNoLifetime},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), tt.want)
		})
	}

	assert.NoError(t, valid.Validate())
}
