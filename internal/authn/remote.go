package authn

import (
	"context"
	"errors"
)

// Remote authenticates by asking the service that owns the session table
type Remote struct {
	client *Client
	dev    DevFallback
}

func NewRemote(o RemoteOptions, dev DevFallback) (*Remote, error) {
	client, err := NewClient(o)
	if err != nil {
		return nil, err
	}

	return &Remote{client: client, dev: dev}, nil
}

func (r *Remote) Kind() Kind { return KindRemote }

// Client exposes the underlying API client for the non-auth calls
func (r *Remote) Client() *Client { return r.client }

func (r *Remote) Authenticate(ctx context.Context, header string) (*Identity, error) {
	return authenticate(ctx, header, r.dev, r)
}

func (r *Remote) byToken(ctx context.Context, token string) (*Identity, error) {
	id, err := r.client.GetByToken(ctx, token)
	return id, remoteNoUser(err)
}

func (r *Remote) byEmail(ctx context.Context, email string) (*Identity, error) {
	id, err := r.client.GetByEmail(ctx, email)
	return id, remoteNoUser(err)
}

func remoteNoUser(err error) error {
	if IsNoUser(err) {
		return errors.Join(errNoUser, err)
	}

	return err
}
