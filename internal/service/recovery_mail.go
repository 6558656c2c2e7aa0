package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers the recovery link out of band
type Mailer interface {
	SendRecovery(ctx context.Context, to, link string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	username := cfg.Username
	if username == "" {
		username = cfg.From
	}

	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, username, cfg.Password),
	}
}

func (m *SMTPMailer) SendRecovery(ctx context.Context, to, link string) error {
	if to == m.cfg.From {
		return errors.New("invalid email address")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Reset your password")
	msg.SetBody("text/html", fmt.Sprintf("Click <a href='%v'>here</a> to choose a new password.\n\nIf you didn't ask for this you can ignore this email.", link))

	return m.dialer.DialAndSend(msg)
}

// LogMailer only logs the link, for development setups without SMTP
type LogMailer struct{}

func (LogMailer) SendRecovery(_ context.Context, to, link string) error {
	zap.L().Info("Recovery mail not sent, mail is disabled", zap.String("to", to), zap.String("link", link))
	return nil
}

// Recovery drives the forgotten-password flow
type Recovery struct {
	creds    *Credentials
	mailer   Mailer
	linkBase string
}

func NewRecovery(creds *Credentials, mailer Mailer, linkBase string) *Recovery {
	return &Recovery{creds: creds, mailer: mailer, linkBase: linkBase}
}

// Link builds the address the user follows to redeem hash
func (r *Recovery) Link(hash string) string {
	return r.linkBase + "?hash=" + url.QueryEscape(hash)
}

// SendRecoveryMail mints a recovery hash for the owner of email and mails it
func (r *Recovery) SendRecoveryMail(ctx context.Context, email string) error {
	user, err := r.creds.UserByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := r.creds.GenerateRecoveryHash(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := r.mailer.SendRecovery(ctx, user.Email, r.Link(hash)); err != nil {
		return fmt.Errorf("failed to send recovery mail, %w", err)
	}

	return nil
}
