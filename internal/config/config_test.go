package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// baseEnv sets the minimum viable environment for a successful Load.
func baseEnv(t *testing.T, provider string) {
	t.Helper()
	t.Setenv("EMAIL_PROVIDER", provider)
	t.Setenv("EMAIL_FROM", "no-reply@example.com")
	t.Setenv("EMAIL_BASE_URL", "https://auth.example.com/v1/auth/verify-email")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SMTP_HOST", "localhost")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("RESEND_API_KEY", "re_test_123")
}

func TestLoad_SMTPProvider(t *testing.T) {
	baseEnv(t, "smtp")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ProviderSMTP, cfg.Email.Provider)
	require.Equal(t, uint16(2525), cfg.SMTP.Port)
	require.Equal(t, 24*time.Hour, cfg.Auth.Verify.TTL)
	require.Equal(t, 10*time.Second, cfg.Email.SendTimeout)
}

func TestLoad_ResendProvider(t *testing.T) {
	baseEnv(t, "resend")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ProviderResend, cfg.Email.Provider)
	require.Equal(t, "https://api.resend.com", cfg.Resend.BaseURL)
}

func TestLoad_ProviderSelectorCaseAndQuotes(t *testing.T) {
	baseEnv(t, ` "SMTP" `)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ProviderSMTP, cfg.Email.Provider)
}

func TestLoad_UnknownProviderFailsAtStartup(t *testing.T) {
	baseEnv(t, "sendpigeon")
	_, err := Load("")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfig))
}

func TestLoad_MissingProviderFails(t *testing.T) {
	baseEnv(t, "smtp")
	t.Setenv("EMAIL_PROVIDER", "")
	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
}

func TestLoad_SMTPMandatoryFields(t *testing.T) {
	baseEnv(t, "smtp")
	t.Setenv("SMTP_HOST", "")
	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
}

func TestLoad_ResendMandatoryKey(t *testing.T) {
	baseEnv(t, "resend")
	t.Setenv("RESEND_API_KEY", "")
	_, err := Load("")
	require.ErrorIs(t, err, ErrConfig)
}

func TestLoad_NumericTunableDegradesToDefault(t *testing.T) {
	baseEnv(t, "smtp")
	t.Setenv("EMAIL_MAX_ATTEMPTS", "many")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint64(1), cfg.Email.MaxAttempts)
}

func TestLoad_YAMLPlusEnvOverride(t *testing.T) {
	baseEnv(t, "smtp")
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("server:\n  addr: \":9999\"\nemail:\n  send_timeout: 3s\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	t.Setenv("EMAIL_SEND_TIMEOUT", "7s") // env wins over YAML
	cfg, err := Load(f.Name())
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, 7*time.Second, cfg.Email.SendTimeout)
}

func TestLoad_RedisEnvOverrides(t *testing.T) {
	baseEnv(t, "smtp")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_PREFIX", "vm-test")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, 3, cfg.Redis.DB)
	require.Equal(t, "vm-test", cfg.Redis.Prefix)
}

func TestLoad_MissingYAMLFileIsTolerated(t *testing.T) {
	baseEnv(t, "smtp")
	cfg, err := Load("/does/not/exist.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
