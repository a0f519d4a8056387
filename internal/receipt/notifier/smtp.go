// Package notifier delivers receipt emails.
package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/email"
)

const implicitTLSPort = 465

// SMTP sends through an authenticated SMTP relay. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type SMTP struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	implicitTLS bool
	tlsConfig   *tls.Config
	now         func() time.Time
}

type SMTPOption func(*SMTP)

// WithImplicitTLS overrides the port based TLS choice.
func WithImplicitTLS(enabled bool) SMTPOption {
	return func(s *SMTP) {
		s.implicitTLS = enabled
	}
}

func WithTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTP) {
		if cfg != nil {
			s.tlsConfig = cfg
		}
	}
}

// NewSMTP builds a sender authenticating as username. from defaults to username.
func NewSMTP(host string, port int, username, password, from string, opts ...SMTPOption) *SMTP {
	if from == "" {
		from = username
	}
	s := &SMTP{
		host:        host,
		port:        port,
		username:    username,
		password:    password,
		from:        from,
		implicitTLS: port == implicitTLSPort,
		tlsConfig:   &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SMTP) Send(ctx context.Context, n models.Notification) error {
	msg, err := buildMessage(s.from, n, s.now())
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("configure smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connect smtp %s: %w", s.host, err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Send(msg); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("send mail: %w", ctx.Err())
		}
		return fmt.Errorf("smtp send to %s: %w", email.Mask(n.To), err)
	}
	return nil
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSConfig(s.tlsConfig),
	}
	if s.implicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}
	return opts
}

// buildMessage renders n as a multipart/mixed message with a text body and the attachment.
func buildMessage(from string, n models.Notification, date time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("recipient %s: %w", email.Mask(n.To), err)
	}
	msg.Subject(n.Subject)
	msg.SetDateWithValue(date)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	if n.Attachment.Name != "" {
		contentType := n.Attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		err := msg.AttachReader(n.Attachment.Name, bytes.NewReader(n.Attachment.Data),
			mail.WithFileContentType(mail.ContentType(contentType)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", n.Attachment.Name, err)
		}
	}
	return msg, nil
}
