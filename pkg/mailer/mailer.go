package mailer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tomebooks/tome/pkg/config"
	mail "github.com/wneessen/go-mail"
)

// Message is an outbound notification email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notification emails. Delivery is best-effort: callers get
// an explicit error and decide whether to fall back or ignore it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when an SMTP host is configured, and a log-only
// sender otherwise (development and tests).
func New(cfg *config.Config) (Sender, error) {
	if cfg.SMTPHost == "" {
		return &LogSender{log: logger.New()}, nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender creates a sender backed by the configured SMTP server.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &SMTPSender{client: client, from: cfg.SMTPFrom}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return errors.WithStack(err)
	}
	if err := m.To(msg.To); err != nil {
		return errors.WithStack(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	log logger.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.New()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("mail (not sent)", logger.Data{"to": msg.To, "subject": msg.Subject})
	return nil
}
