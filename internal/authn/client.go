package authn

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitwise74/marketplace-auth/internal/model"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRemoteTimeout = 5 * time.Second
	DefaultRemoteRetries = 2
	FingerprintHeader    = "X-Fingerprint"

	maxResponseSize = 1 << 20
)

// StatusError is a non 2xx answer from the auth service
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth service returned %d", e.Code)
	}

	return fmt.Sprintf("auth service returned %d: %s", e.Code, e.Message)
}

// IsNoUser reports whether err means the service knows no such user or session
func IsNoUser(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}

	return se.Code == http.StatusNotFound || se.Code == http.StatusUnauthorized
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type remoteUser struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	IsAdmin bool   `json:"isAdmin"`
}

func (u *remoteUser) identity() *Identity {
	return &Identity{
		UserID:  u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Slug:    u.Slug,
		IsAdmin: u.IsAdmin,
		Hash:    claimsHash(u.ID, u.Email),
	}
}

type RemoteOptions struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RetryInterval is the first backoff delay, it doubles per attempt
	RetryInterval time.Duration

	// CAFile replaces the system roots, CertFile and KeyFile enable mutual TLS
	CAFile   string
	CertFile string
	KeyFile  string

	// AssertionSecret, when set, requires a valid signed assertion on every
	// resolve response
	AssertionSecret []byte

	// HTTPClient overrides the client built from the TLS options
	HTTPClient *http.Client
}

// Client speaks the auth service HTTP API. Only idempotent GETs are retried.
type Client struct {
	base          *url.URL
	http          *http.Client
	retries       int
	retryInterval time.Duration
	secret        []byte
}

func NewClient(o RemoteOptions) (*Client, error) {
	if o.BaseURL == "" {
		return nil, errors.New("remote strategy needs a base url")
	}

	base, err := url.Parse(strings.TrimSuffix(o.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url, %w", err)
	}

	if base.Scheme != "https" && base.Scheme != "http" {
		return nil, fmt.Errorf("unsupported remote scheme %q", base.Scheme)
	}

	if o.Timeout <= 0 {
		o.Timeout = DefaultRemoteTimeout
	}

	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}

	if o.RetryInterval <= 0 {
		o.RetryInterval = 200 * time.Millisecond
	}

	client := o.HTTPClient
	if client == nil {
		tlsCfg, err := tlsConfig(o)
		if err != nil {
			return nil, err
		}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsCfg

		client = &http.Client{Transport: transport, Timeout: o.Timeout}
	}

	return &Client{
		base:          base,
		http:          client,
		retries:       o.MaxRetries,
		retryInterval: o.RetryInterval,
		secret:        o.AssertionSecret,
	}, nil
}

// tlsConfig never disables verification
func tlsConfig(o RemoteOptions) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if o.CAFile != "" {
		pem, err := os.ReadFile(o.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle, %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", o.CAFile)
		}

		cfg.RootCAs = pool
	}

	if o.CertFile != "" || o.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate, %w", err)
		}

		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

type call struct {
	method string
	path   string
	body   any
	header http.Header
	retry  bool
}

type result struct {
	data   json.RawMessage
	header http.Header
}

func (c *Client) do(ctx context.Context, in call) (*result, error) {
	var payload []byte
	if in.body != nil {
		b, err := json.Marshal(in.body)
		if err != nil {
			return nil, err
		}
		payload = b
	}

	var out *result

	op := func() error {
		res, err := c.attempt(ctx, in, payload)
		if err != nil {
			return err
		}

		out = res
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if in.retry && c.retries > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.retryInterval
		exp.MaxInterval = 10 * c.retryInterval
		b = backoff.WithMaxRetries(exp, uint64(c.retries))
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) attempt(ctx context.Context, in call, payload []byte) (*result, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.base.String()+in.path, body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	for k, v := range in.header {
		req.Header[k] = v
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}

		// Transport failures are worth another try
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 500 {
		return nil, &StatusError{Code: resp.StatusCode, Message: env.Error}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode, Message: env.Error})
	}

	if decodeErr != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode auth service response, %w", decodeErr))
	}

	if !env.Success {
		return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode, Message: env.Error})
	}

	return &result{data: env.Data, header: resp.Header}, nil
}

func decode[T any](res *result) (*T, error) {
	var v T
	if err := json.Unmarshal(res.data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode auth service payload, %w", err)
	}

	return &v, nil
}

func (c *Client) resolve(ctx context.Context, path string) (*Identity, error) {
	res, err := c.do(ctx, call{method: http.MethodGet, path: path, retry: true})
	if err != nil {
		return nil, err
	}

	u, err := decode[remoteUser](res)
	if err != nil {
		return nil, err
	}

	if u.ID <= 0 {
		return nil, errors.New("auth service returned a user without id")
	}

	id := u.identity()

	if len(c.secret) > 0 {
		if err := VerifyAssertion(c.secret, res.header.Get(AssertionHeader), id); err != nil {
			return nil, err
		}
	}

	return id, nil
}

func (c *Client) GetByToken(ctx context.Context, token string) (*Identity, error) {
	return c.resolve(ctx, "/getByToken/"+url.PathEscape(token))
}

func (c *Client) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return c.resolve(ctx, "/getByEmail/"+url.PathEscape(email))
}

func (c *Client) GetByID(ctx context.Context, id int64) (*Identity, error) {
	return c.resolve(ctx, "/getById/"+strconv.FormatInt(id, 10))
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) LoginWithEmail(ctx context.Context, email, password string) (*Identity, error) {
	res, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/loginWithEmail",
		body:   credentialsBody{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}

	u, err := decode[remoteUser](res)
	if err != nil {
		return nil, err
	}

	return u.identity(), nil
}

// IssueToken logs in and returns a fresh session bound to fingerprint
func (c *Client) IssueToken(ctx context.Context, email, password, fingerprint string) (*model.SessionToken, error) {
	res, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/gettokenauthorized",
		body:   credentialsBody{Email: email, Password: password},
		header: http.Header{FingerprintHeader: []string{fingerprint}},
	})
	if err != nil {
		return nil, err
	}

	return decode[model.SessionToken](res)
}

func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/changePassword",
		body: map[string]string{
			"oldPassword": oldPassword,
			"newPassword": newPassword,
		},
		header: http.Header{"Authorization": []string{"Bearer " + token}},
	})

	return err
}

func (c *Client) SendRecoveryMail(ctx context.Context, email string) error {
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/sendRecoveryMail/" + url.PathEscape(email)})
	return err
}

func (c *Client) ChangePasswordUsingHash(ctx context.Context, recoveryHash, newPassword string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/changePasswordUsingHash",
		body: map[string]string{
			"recoveryHash": recoveryHash,
			"newPassword":  newPassword,
		},
	})

	return err
}
