package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
	"github.com/dropDatabas3/verimail/internal/util"
)

// Dispatcher is the single entrypoint for sending verification emails.
// Handlers and background jobs go through it; nothing else constructs a
// provider backend directly.
type Dispatcher struct {
	cfg    *config.Config
	sender Sender
	tmpl   *Templates
}

// NewSender maps the resolved provider selector to exactly one backend.
// config.Load already rejected unknown selectors, so hitting the default
// branch here is an internal inconsistency and fails closed.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.Email.Provider {
	case config.ProviderSMTP:
		return NewSMTPSender(cfg), nil
	case config.ProviderResend:
		return NewResendSender(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Email.Provider)
	}
}

// NewDispatcher wires the configured backend and templates.
func NewDispatcher(cfg *config.Config) (*Dispatcher, error) {
	sender, err := NewSender(cfg)
	if err != nil {
		return nil, err
	}
	tmpl, err := LoadTemplates(cfg.Email.TemplatesDir)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{cfg: cfg, sender: sender, tmpl: tmpl}, nil
}

// NewDispatcherWith injects an explicit Sender. Used by tests and by dev
// setups that echo instead of sending.
func NewDispatcherWith(cfg *config.Config, sender Sender) (*Dispatcher, error) {
	tmpl, err := LoadTemplates(cfg.Email.TemplatesDir)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{cfg: cfg, sender: sender, tmpl: tmpl}, nil
}

// Provider reports the selected backend.
func (d *Dispatcher) Provider() config.Provider { return d.sender.Name() }

// VerificationLink builds the link embedded in the email body.
func (d *Dispatcher) VerificationLink(token string) string {
	return strings.TrimRight(d.cfg.Email.BaseURL, "/") + "?token=" + url.QueryEscape(token)
}

// TrySendVerificationEmail renders the message and attempts delivery through
// the selected backend, up to the configured attempt count. It always
// returns a definite Outcome and never panics or raises past this boundary;
// failure reasons are sanitized by the backends. It does not log: the
// logging policy (exactly once per failed dispatch) belongs to the caller.
func (d *Dispatcher) TrySendVerificationEmail(ctx context.Context, to, token string) (out Outcome) {
	provider := d.sender.Name()

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Provider: provider, Sent: false, Reason: fmt.Sprintf("backend panic: %v", r)}
			observeOutcome(out)
		}
	}()

	subject, html, text, err := d.tmpl.RenderVerify(VerifyVars{
		UserEmail: to,
		Link:      d.VerificationLink(token),
		TTL:       d.cfg.Auth.Verify.TTL.String(),
	})
	if err != nil {
		o := Outcome{Provider: provider, Sent: false, Reason: err.Error()}
		observeOutcome(o)
		return o
	}

	msg := Message{To: to, Subject: subject, HTML: html, Text: text}

	attempts := d.cfg.Email.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var lastErr error
	for i := uint64(0); i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Email.SendTimeout)
		err := d.sender.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			o := Outcome{Provider: provider, Sent: true}
			observeOutcome(o)
			return o
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	o := Outcome{Provider: provider, Sent: false, Reason: lastErr.Error()}
	observeOutcome(o)
	return o
}

// DispatchAsync performs the delivery as a detached, best-effort side
// effect: the caller's request does not wait for the transport. The outcome
// stays observable through the returned channel (buffered, never blocks the
// send path), the metric, and a single structured log line on failure.
func (d *Dispatcher) DispatchAsync(to, token string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		// detached from the request context; each attempt is still bounded
		// by the per-attempt send timeout
		o := d.TrySendVerificationEmail(context.Background(), to, token)
		if !o.Sent {
			logger.L().Warn("email_dispatch_failed",
				logger.Provider(string(o.Provider)),
				logger.String("reason", o.Reason),
				logger.Email(util.MaskEmail(to)),
			)
		}
		out <- o
		close(out)
	}()
	return out
}
