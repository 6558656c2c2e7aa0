// Package authn resolves an Authorization header to an Identity. Two
// interchangeable strategies exist: Local reads the session store directly,
// Remote asks the service that owns it over HTTP.
package authn

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindLocal Kind = iota + 1
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return KindLocal, nil
	case "remote":
		return KindRemote, nil
	default:
		return 0, fmt.Errorf("unknown auth strategy %q", s)
	}
}

// Strategy turns the raw Authorization header into an identity. Every error
// it returns is a *Failure.
type Strategy interface {
	Authenticate(ctx context.Context, header string) (*Identity, error)
	Kind() Kind
}

// DevFallback maps one well known token to a fixed account. It only exists
// for local demos and is refused by config in production mode.
type DevFallback struct {
	Enabled bool
	Token   string
	Email   string
}

func (d DevFallback) matches(token string) bool {
	if !d.Enabled || d.Token == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(d.Token), []byte(token)) == 1
}

type Options struct {
	Dev    DevFallback
	Local  LocalOptions
	Remote RemoteOptions
}

// New builds the strategy selected by kind
func New(kind Kind, o Options) (Strategy, error) {
	switch kind {
	case KindLocal:
		return NewLocal(o.Local, o.Dev)
	case KindRemote:
		return NewRemote(o.Remote, o.Dev)
	default:
		return nil, fmt.Errorf("unknown auth strategy %s", kind)
	}
}

// errNoUser is what resolvers return when the credential maps to nobody
var errNoUser = errors.New("no user for credential")

type resolver interface {
	byToken(ctx context.Context, token string) (*Identity, error)
	byEmail(ctx context.Context, email string) (*Identity, error)
}

// authenticate is the state machine both strategies share
func authenticate(ctx context.Context, header string, dev DevFallback, r resolver) (*Identity, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fail(MissingHeader, nil)
	}

	token, err := ParseHeader(header)
	if err != nil {
		return nil, fail(MissingToken, err)
	}

	var id *Identity
	if dev.matches(token) {
		id, err = r.byEmail(ctx, dev.Email)
	} else {
		id, err = r.byToken(ctx, token)
	}

	switch {
	case errors.Is(err, errNoUser):
		return nil, fail(InvalidSession, err)
	case err != nil:
		return nil, fail(AuthenticationError, err)
	case id == nil:
		return nil, fail(InvalidSession, nil)
	}

	return id, nil
}
