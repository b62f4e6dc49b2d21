// Package mailer delivers transactional mail: the "new screening available"
// notice and password reset links.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/triagify/triagify-backend/internal/config"
)

// Message is one outgoing mail. HTML is optional.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends messages. Implementations are safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, m Message) error
	Close() error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// sendTimeout bounds one delivery, dial to QUIT.
const sendTimeout = 30 * time.Second

// SMTP sends mail through an SMTP relay. A go-mail client holds the session
// of its last dial, so every Send builds its own client from opts.
type SMTP struct {
	host     string
	opts     []mail.Option
	timeout  time.Duration
	from     string
	fromName string
}

// New returns an SMTP mailer when cfg.Host is set and a Nop mailer otherwise.
func New(cfg config.SMTPConfig, log zerolog.Logger) (Mailer, error) {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP_HOST not set; outgoing mail is logged and dropped")
		return Nop{Log: log}, nil
	}
	return NewSMTP(cfg)
}

// NewSMTP validates the go-mail options. Authentication is only configured when
// a username is present; TLS is used whenever the server offers it.
func NewSMTP(cfg config.SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(sendTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{host: cfg.Host, opts: opts, timeout: sendTimeout, from: cfg.From, fromName: cfg.FromName}, nil
}

func (s *SMTP) build(m Message) (*mail.Msg, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := msg.AddToFormat(m.ToName, m.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

// Send delivers m. Failures are returned to the caller, never retried.
func (s *SMTP) Send(ctx context.Context, m Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

// Close is a no-op: connections are closed after every Send.
func (s *SMTP) Close() error { return nil }

// Nop logs messages instead of sending them.
type Nop struct {
	Log zerolog.Logger
}

func (n Nop) Send(_ context.Context, m Message) error {
	if m.To == "" {
		return ErrNoRecipient
	}
	n.Log.Info().Str("to", m.To).Str("subject", m.Subject).Msg("mail not sent (no SMTP relay)")
	return nil
}

func (Nop) Close() error { return nil }
