package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
)

// SMTPSender implements Sender over a plain SMTP transport.
type SMTPSender struct {
	Host               string
	Port               uint16
	From               string
	User               string
	Pass               string
	TLSMode            string // auto | starttls | ssl | none
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewSMTPSender builds an SMTP backend from resolved configuration.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.Email.From,
		User:               cfg.SMTP.Username,
		Pass:               cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		Timeout:            cfg.Email.SendTimeout,
	}
}

func (s *SMTPSender) Name() config.Provider { return config.ProviderSMTP }

// Send opens a session, delivers the message and closes the session. The
// context deadline bounds the whole attempt; an expired deadline returns a
// timeout error rather than hanging. Errors never carry credentials: the
// dialer error text only names host/port and the server's own response.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	log := logger.From(ctx).With(
		logger.Component("SMTPSender"),
		logger.String("host", s.Host),
		logger.Int("port", int(s.Port)),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	// multipart/alternative when both bodies are present
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text == "" {
			m.SetBody("text/html", msg.HTML)
		} else {
			m.AddAlternative("text/html", msg.HTML)
		}
	}

	d := mail.NewDialer(s.Host, int(s.Port), s.User, s.Pass)
	d.Timeout = s.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // dev only
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negotiates STARTTLS when offered
	}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			log.Debug("smtp send failed", logger.Err(err))
			return fmt.Errorf("smtp %s:%d: %w", s.Host, s.Port, err)
		}
		return nil
	case <-ctx.Done():
		// the in-flight session may still complete; we stop waiting for it
		return fmt.Errorf("smtp %s:%d: %w", s.Host, s.Port, ctx.Err())
	}
}
