package internal

import (
	"context"
	"fmt"
	"time"

	"bitwise74/marketplace-auth/aws"
	"bitwise74/marketplace-auth/config"
	"bitwise74/marketplace-auth/db"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/internal/service"
	"bitwise74/marketplace-auth/pkg/observability"
	"bitwise74/marketplace-auth/pkg/security"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Store       *repository.Store
	Hasher      security.Hasher
	Credentials *service.Credentials
	Sessions    *service.Sessions
	Roles       *service.Roles
	Recovery    *service.Recovery
	Avatars     *service.Avatars
	Auth        authn.Strategy
	Metrics     *observability.Metrics

	// AssertionSecret signs the identities the resolve endpoints return
	AssertionSecret []byte
	AssertionTTL    time.Duration
}

// NewDeps wires every service over a single database connection. conn may be
// nil, in which case the configured database is opened.
func NewDeps(ctx context.Context, cfg *config.Config, conn *gorm.DB) (*Deps, error) {
	if conn == nil {
		var err error

		conn, err = db.New(db.Options{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN, Debug: cfg.DB.Debug})
		if err != nil {
			return nil, err
		}
	}

	hasher, err := security.NewHasher(cfg.Security.HashAlgorithm, cfg.Security.BcryptCost)
	if err != nil {
		return nil, err
	}

	store := repository.New(conn)

	d := &Deps{
		DB:              conn,
		Store:           store,
		Hasher:          hasher,
		AssertionSecret: []byte(cfg.Auth.AssertionSecret),
		AssertionTTL:    cfg.Auth.AssertionTTL,
	}

	d.Credentials = service.NewCredentials(store.Users, hasher, service.CredentialsOpts{
		RecoveryLifetime: cfg.Recovery.Lifetime,
	})
	d.Sessions = service.NewSessions(store.Sessions, store.Users, service.SessionsOpts{
		Lifetime:      cfg.Session.Lifetime,
		TouchInterval: cfg.Session.TouchInterval,
	})
	d.Roles = service.NewRoles(store.Roles, store.Users)

	var mailer service.Mailer = service.LogMailer{}
	if cfg.Mail.Host != "" {
		mailer = service.NewSMTPMailer(service.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	d.Recovery = service.NewRecovery(d.Credentials, mailer, cfg.Recovery.LinkBase)

	// A nil interface, not a nil *S3Client, keeps uploads disabled
	var objects service.ObjectStore
	if cfg.Storage.Enabled {
		s3, err := aws.NewS3(ctx, aws.S3Config{
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			Endpoint:        cfg.Storage.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		objects = s3
	}
	d.Avatars = service.NewAvatars(objects, store.Users, cfg.Storage.MaxAvatarSize<<20)

	if cfg.Metrics.Enabled {
		d.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	kind, err := authn.ParseKind(cfg.Auth.Strategy)
	if err != nil {
		return nil, err
	}

	d.Auth, err = authn.New(kind, authn.Options{
		Dev: authn.DevFallback{
			Enabled: cfg.Auth.Dev.Enabled,
			Token:   cfg.Auth.Dev.Token,
			Email:   cfg.Auth.Dev.Email,
		},
		Local: authn.LocalOptions{
			Sessions: d.Sessions,
			Users:    d.Credentials,
		},
		Remote: authn.RemoteOptions{
			BaseURL:         cfg.Auth.Remote.BaseURL,
			Timeout:         cfg.Auth.Remote.Timeout,
			MaxRetries:      cfg.Auth.Remote.MaxRetries,
			CAFile:          cfg.Auth.Remote.CAFile,
			CertFile:        cfg.Auth.Remote.CertFile,
			KeyFile:         cfg.Auth.Remote.KeyFile,
			AssertionSecret: d.AssertionSecret,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s auth strategy, %w", kind, err)
	}

	zap.L().Info("Authentication strategy ready", zap.Stringer("strategy", kind), zap.Bool("devToken", cfg.Auth.Dev.Enabled))

	return d, nil
}
