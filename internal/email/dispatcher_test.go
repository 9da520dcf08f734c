package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/verimail/internal/config"
)

// fakeSender records messages and returns a scripted error.
type fakeSender struct {
	name  config.Provider
	err   error
	calls int
	last  Message
}

func (f *fakeSender) Name() config.Provider { return f.name }
func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.calls++
	f.last = msg
	return f.err
}

// panicSender simulates a backend fault.
type panicSender struct{}

func (panicSender) Name() config.Provider              { return config.ProviderSMTP }
func (panicSender) Send(context.Context, Message) error { panic("backend fault") }

func smtpConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("EMAIL_PROVIDER", "smtp")
	t.Setenv("EMAIL_FROM", "no-reply@example.com")
	t.Setenv("EMAIL_BASE_URL", "https://auth.example.com/v1/auth/verify-email/")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SMTP_HOST", "localhost")
	t.Setenv("SMTP_PORT", "2525")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewSender_SelectsExactlyOneBackend(t *testing.T) {
	cfg := smtpConfig(t)

	s, err := NewSender(cfg)
	require.NoError(t, err)
	require.Equal(t, config.ProviderSMTP, s.Name())
	_, ok := s.(*SMTPSender)
	require.True(t, ok)

	cfg.Email.Provider = config.ProviderResend
	cfg.Resend.APIKey = "re_x"
	cfg.Resend.BaseURL = "https://api.resend.com"
	s, err = NewSender(cfg)
	require.NoError(t, err)
	_, ok = s.(*ResendSender)
	require.True(t, ok)
}

func TestNewSender_UnknownSelectorFailsClosed(t *testing.T) {
	cfg := smtpConfig(t)
	cfg.Email.Provider = "carrier-pigeon" // bypasses Load validation on purpose
	_, err := NewSender(cfg)
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestTrySendVerificationEmail_Sent(t *testing.T) {
	cfg := smtpConfig(t)
	fake := &fakeSender{name: config.ProviderSMTP}
	d, err := NewDispatcherWith(cfg, fake)
	require.NoError(t, err)

	o := d.TrySendVerificationEmail(context.Background(), "alice@example.com", "tok en+1")
	require.True(t, o.Sent)
	require.Equal(t, config.ProviderSMTP, o.Provider)
	require.Empty(t, o.Reason)
	require.Equal(t, 1, fake.calls)

	// token is query-escaped into the link, base URL trailing slash trimmed;
	// the text body carries the link verbatim, the HTML body entity-escapes it
	link := "https://auth.example.com/v1/auth/verify-email?token=tok+en%2B1"
	require.Contains(t, fake.last.Text, link)
	require.Contains(t, fake.last.HTML, "https://auth.example.com/v1/auth/verify-email?token=tok&#43;en%2B1")
	require.Equal(t, VerifySubject, fake.last.Subject)
}

func TestTrySendVerificationEmail_FailureIsOutcomeNotError(t *testing.T) {
	cfg := smtpConfig(t)
	fake := &fakeSender{name: config.ProviderSMTP, err: errors.New("smtp localhost:2525: connection refused")}
	d, err := NewDispatcherWith(cfg, fake)
	require.NoError(t, err)

	o := d.TrySendVerificationEmail(context.Background(), "alice@example.com", "tok")
	require.False(t, o.Sent)
	require.Equal(t, config.ProviderSMTP, o.Provider)
	require.Contains(t, o.Reason, "connection refused")
}

func TestTrySendVerificationEmail_RetriesUpToMaxAttempts(t *testing.T) {
	cfg := smtpConfig(t)
	cfg.Email.MaxAttempts = 3
	fake := &fakeSender{name: config.ProviderSMTP, err: errors.New("boom")}
	d, err := NewDispatcherWith(cfg, fake)
	require.NoError(t, err)

	o := d.TrySendVerificationEmail(context.Background(), "a@b.c", "tok")
	require.False(t, o.Sent)
	require.Equal(t, 3, fake.calls)
}

func TestTemplateContentIdenticalAcrossProviders(t *testing.T) {
	cfg := smtpConfig(t)

	smtpFake := &fakeSender{name: config.ProviderSMTP}
	resendFake := &fakeSender{name: config.ProviderResend}

	d1, err := NewDispatcherWith(cfg, smtpFake)
	require.NoError(t, err)
	d2, err := NewDispatcherWith(cfg, resendFake)
	require.NoError(t, err)

	d1.TrySendVerificationEmail(context.Background(), "alice@example.com", "tok")
	d2.TrySendVerificationEmail(context.Background(), "alice@example.com", "tok")

	require.Equal(t, smtpFake.last.Subject, resendFake.last.Subject)
	require.Equal(t, smtpFake.last.HTML, resendFake.last.HTML)
	require.Equal(t, smtpFake.last.Text, resendFake.last.Text)
}

func TestTrySendVerificationEmail_BackendPanicBecomesOutcome(t *testing.T) {
	cfg := smtpConfig(t)
	d, err := NewDispatcherWith(cfg, panicSender{})
	require.NoError(t, err)

	o := d.TrySendVerificationEmail(context.Background(), "a@b.c", "tok")
	require.False(t, o.Sent)
	require.Contains(t, o.Reason, "backend fault")
}

func TestDispatchAsync_OutcomeObservable(t *testing.T) {
	cfg := smtpConfig(t)
	fake := &fakeSender{name: config.ProviderSMTP, err: errors.New("down")}
	d, err := NewDispatcherWith(cfg, fake)
	require.NoError(t, err)

	o := <-d.DispatchAsync("alice@example.com", "tok")
	require.False(t, o.Sent)
	require.True(t, strings.Contains(o.Reason, "down"))
}
