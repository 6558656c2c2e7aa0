package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"sync"
	"testing"
	"time"

	"bitwise74/marketplace-auth/app"
	"bitwise74/marketplace-auth/config"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/service"
	"bitwise74/marketplace-auth/internal/testutil"
	"bitwise74/marketplace-auth/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	devToken = "tokendoamor"
	devEmail = "demo@example.com"
	secret   = "assertion-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{LogLevel: "info", Mode: config.ModeDevelopment},
		Host: config.HostConfig{Port: 8080, CORS: []string{"http://localhost:5173"}},
		Session: config.SessionConfig{
			Lifetime:      time.Hour,
			TouchInterval: time.Minute,
		},
		Security: config.SecurityConfig{
			HashAlgorithm: security.AlgorithmBcrypt,
			BcryptCost:    bcrypt.MinCost,
			BodyLimit:     1 << 20,
		},
		Auth: config.AuthConfig{
			Strategy:        "local",
			AssertionSecret: secret,
			AssertionTTL:    time.Minute,
			Dev:             config.DevConfig{Enabled: true, Token: devToken, Email: devEmail},
		},
		Recovery: config.RecoveryConfig{Lifetime: time.Hour, LinkBase: "http://localhost:5173/recover"},
		Metrics:  config.MetricsConfig{Enabled: true},
	}
}

type capturingMailer struct {
	mu   sync.Mutex
	link string
}

func (m *capturingMailer) SendRecovery(_ context.Context, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.link = link
	return nil
}

func (m *capturingMailer) Link() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.link
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = b
	return nil
}

func (m *memObjects) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	return ok
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

type fixture struct {
	d       *internal.Deps
	srv     *httptest.Server
	mail    *capturingMailer
	objects *memObjects
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testConfig()

	d, err := internal.NewDeps(ctx, cfg, testutil.NewDB(t))
	require.NoError(t, err)

	f := &fixture{
		d:       d,
		mail:    &capturingMailer{},
		objects: &memObjects{objects: map[string][]byte{}},
	}
	d.Recovery = service.NewRecovery(d.Credentials, f.mail, cfg.Recovery.LinkBase)
	d.Avatars = service.NewAvatars(f.objects, d.Store.Users, 0)

	f.srv = httptest.NewServer(app.NewRouter(ctx, cfg, d))
	t.Cleanup(f.srv.Close)

	return f
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"requestID"`
}

type request struct {
	method string
	path   string
	token  string
	body   any
	header map[string]string
}

func (f *fixture) do(t *testing.T, r request) (*http.Response, envelope) {
	t.Helper()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(r.method, f.srv.URL+r.path, body)
	require.NoError(t, err)

	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}

	return resp, env
}

func (f *fixture) register(t *testing.T, email, password string) *model.User {
	t.Helper()

	u, err := f.d.Credentials.Register(context.Background(), service.RegisterOpts{Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()

	resp, env := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/gettokenauthorized",
		body:   map[string]string{"email": email, "password": password},
		header: map[string]string{authn.FingerprintHeader: "laptop"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var tok model.SessionToken
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)

	return tok.Token
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, request{method: http.MethodHead, path: "/api/heartbeat"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIssueAndValidate(t *testing.T) {
	f := newFixture(t)
	ana := f.register(t, "ana@example.com", "correct-horse")

	token := f.login(t, "ana@example.com", "correct-horse")

	resp, env := f.do(t, request{method: http.MethodGet, path: "/api/validate", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)

	var id authn.Identity
	require.NoError(t, json.Unmarshal(env.Data, &id))
	assert.Equal(t, *authn.NewIdentity(ana), id)

	resp, env = f.do(t, request{method: http.MethodGet, path: "/api/validate"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Missing Authorization header", env.Error)

	resp, _ = f.do(t, request{method: http.MethodGet, path: "/api/validate", token: "not-a-session"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueTokenErrors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")

	tests := []struct {
		name   string
		body   map[string]string
		header map[string]string
		code   int
	}{
		{"wrong password", map[string]string{"email": "ana@example.com", "password": "nope-nope"}, map[string]string{authn.FingerprintHeader: "fp"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "ghost@example.com", "password": "whatever1"}, map[string]string{authn.FingerprintHeader: "fp"}, http.StatusNotFound},
		{"no password", map[string]string{"email": "ana@example.com"}, map[string]string{authn.FingerprintHeader: "fp"}, http.StatusBadRequest},
		{"no fingerprint", map[string]string{"email": "ana@example.com", "password": "correct-horse"}, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := f.do(t, request{
				method: http.MethodPost,
				path:   "/api/auth/gettokenauthorized",
				body:   tt.body,
				header: tt.header,
			})
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestResolveEndpointsSignAssertion(t *testing.T) {
	f := newFixture(t)
	ana := f.register(t, "ana@example.com", "correct-horse")
	token := f.login(t, "ana@example.com", "correct-horse")

	for _, path := range []string{
		"/api/auth/getByToken/" + token,
		"/api/auth/getByEmail/ana@example.com",
		"/api/auth/getById/" + jsonInt(ana.ID),
	} {
		resp, env := f.do(t, request{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var u model.User
		require.NoError(t, json.Unmarshal(env.Data, &u))
		assert.Equal(t, ana.ID, u.ID)

		assert.NoError(t, authn.VerifyAssertion([]byte(secret), resp.Header.Get(authn.AssertionHeader), authn.NewIdentity(ana)))
	}

	resp, _ := f.do(t, request{method: http.MethodGet, path: "/api/auth/getById/abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, request{method: http.MethodGet, path: "/api/auth/getByEmail/ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestLoginWithEmailHidesHash(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")

	resp, env := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/loginWithEmail",
		body:   map[string]string{"email": "ana@example.com", "password": "correct-horse"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "$2a$")
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"email": "Bo@Example.com", "name": "Bo Diddley", "password": "correct-horse"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var u model.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "bo@example.com", u.Email)
	assert.Equal(t, "bo-diddley", u.Slug)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"email": "bo@example.com", "password": "correct-horse"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"email": "not-an-email", "password": "correct-horse"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"email": "short@example.com", "password": "newpass"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password must be at least 8 characters long", env.Error)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")
	token := f.login(t, "ana@example.com", "correct-horse")

	resp, _ := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/changePassword",
		body:   map[string]string{"oldPassword": "correct-horse", "newPassword": "battery-staple"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/changePassword",
		token:  token,
		body:   map[string]string{"oldPassword": "wrong-horse", "newPassword": "battery-staple"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/changePassword",
		token:  token,
		body:   map[string]string{"oldPassword": "correct-horse", "newPassword": "newpass"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/changePassword",
		token:  token,
		body:   map[string]string{"oldPassword": "correct-horse", "newPassword": "battery-staple"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.login(t, "ana@example.com", "battery-staple")
}

func TestRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")

	resp, _ := f.do(t, request{method: http.MethodGet, path: "/api/auth/sendRecoveryMail/ana@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	link, err := url.Parse(f.mail.Link())
	require.NoError(t, err)
	hash := link.Query().Get("hash")
	require.NotEmpty(t, hash)

	redeem := request{
		method: http.MethodPost,
		path:   "/api/auth/changePasswordUsingHash",
		body:   map[string]string{"recoveryHash": hash, "newPassword": "battery-staple"},
	}

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/changePasswordUsingHash",
		body:   map[string]string{"recoveryHash": hash, "newPassword": "newpass"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A rejected password leaves the hash usable
	resp, _ = f.do(t, redeem)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f.login(t, "ana@example.com", "battery-staple")

	// A recovery hash is single use
	resp, _ = f.do(t, redeem)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, request{method: http.MethodGet, path: "/api/auth/sendRecoveryMail/ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")

	first := f.login(t, "ana@example.com", "correct-horse")
	f.login(t, "ana@example.com", "correct-horse")

	resp, env := f.do(t, request{method: http.MethodGet, path: "/api/auth/sessions", token: first})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(env.Data), first)

	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "laptop", sessions[0]["fingerprint"])
	assert.Equal(t, false, sessions[0]["expired"])
}

func TestUploadImageUser(t *testing.T) {
	f := newFixture(t)
	ana := f.register(t, "ana@example.com", "correct-horse")
	token := f.login(t, "ana@example.com", "correct-horse")

	upload := func(contentType string, data []byte) (*http.Response, envelope) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		part.Write(data)
		require.NoError(t, w.Close())

		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/auth/uploadImageUser", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var env envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp, env
	}

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
	resp, env := upload("image/png", png)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var out struct {
		AvatarKey string `json:"avatarKey"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))

	u, err := f.d.Store.Users.GetByID(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.Equal(t, out.AvatarKey, u.AvatarKey)
	assert.True(t, f.objects.Has(out.AvatarKey))

	resp, _ = upload("application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The declared content type is not trusted
	resp, env = upload("image/png", []byte("<script>alert(1)</script>"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unsupported image type", env.Error)

	u, err = f.d.Store.Users.GetByID(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.Equal(t, out.AvatarKey, u.AvatarKey)
}

func TestRoleRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.register(t, "admin@example.com", "correct-horse")
	require.NoError(t, f.d.DB.Model(&model.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)
	manager := f.register(t, "manager@example.com", "correct-horse")
	plain := f.register(t, "plain@example.com", "correct-horse")

	adminToken := f.login(t, "admin@example.com", "correct-horse")
	managerToken := f.login(t, "manager@example.com", "correct-horse")
	plainToken := f.login(t, "plain@example.com", "correct-horse")

	resp, _ := f.do(t, request{method: http.MethodGet, path: "/api/roles", token: plainToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	listRoles := func(token string) []model.Role {
		t.Helper()

		resp, env := f.do(t, request{method: http.MethodGet, path: "/api/roles", token: token})
		require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

		var out []model.Role
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}

	// Warms the cached catalog
	assert.Len(t, listRoles(adminToken), 2)

	resp, env := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/roles",
		token:  adminToken,
		body:   map[string]string{"name": "Seller Support"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var support model.Role
	require.NoError(t, json.Unmarshal(env.Data, &support))
	assert.Equal(t, "seller-support", support.Slug)

	resp, _ = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/roles",
		token:  adminToken,
		body:   map[string]string{"name": "Seller Support"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	rm, err := f.d.Roles.GetRoleBySlug(ctx, service.RoleManager)
	require.NoError(t, err)

	resp, _ = f.do(t, request{method: http.MethodPost, path: "/api/users/" + jsonInt(manager.ID) + "/roles/" + jsonInt(rm.ID), token: adminToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Granted roles take effect on the next request, and the new role is
	// listed despite the warm cache
	assert.Len(t, listRoles(managerToken), 3)

	resp, env = f.do(t, request{
		method: http.MethodPut,
		path:   "/api/users/" + jsonInt(plain.ID) + "/roles",
		token:  managerToken,
		body:   map[string][]int64{"roleIds": {support.ID, support.ID}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var held []model.Role
	require.NoError(t, json.Unmarshal(env.Data, &held))
	require.Len(t, held, 1)
	assert.Equal(t, support.ID, held[0].ID)

	resp, _ = f.do(t, request{
		method: http.MethodPut,
		path:   "/api/users/" + jsonInt(plain.ID) + "/roles",
		token:  managerToken,
		body:   map[string][]int64{"roleIds": {9999}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, request{method: http.MethodDelete, path: "/api/roles/" + jsonInt(support.ID), token: managerToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, listRoles(managerToken), 2)

	// Clearing every role of a user is reserved to admins
	resp, _ = f.do(t, request{method: http.MethodDelete, path: "/api/users/" + jsonInt(manager.ID) + "/roles", token: managerToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	roles, err := f.d.Roles.ListRoles(ctx, plain.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	resp, _ = f.do(t, request{method: http.MethodDelete, path: "/api/users/" + jsonInt(manager.ID) + "/roles", token: adminToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, request{method: http.MethodGet, path: "/api/users/" + jsonInt(plain.ID) + "/roles", token: managerToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@example.com", "correct-horse")
	f.login(t, "ana@example.com", "correct-horse")

	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "auth_sessions_issued_total 1")
	assert.Contains(t, string(raw), `path="/api/auth/gettokenauthorized"`)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}
