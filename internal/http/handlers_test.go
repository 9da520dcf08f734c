package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/email"
	"github.com/dropDatabas3/verimail/internal/security/token"
	"github.com/dropDatabas3/verimail/internal/store/memory"
	"github.com/dropDatabas3/verimail/internal/verify"
)

type captureSender struct {
	mu   sync.Mutex
	sent []email.Message
	fail bool
}

func (c *captureSender) Name() config.Provider { return config.ProviderSMTP }

func (c *captureSender) Send(ctx context.Context, m email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("connection refused")
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *captureSender) last(t *testing.T) email.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Email.Provider = config.ProviderSMTP
	cfg.Email.From = "no-reply@example.com"
	cfg.Email.BaseURL = "https://app.example.com/verify"
	cfg.Email.SendTimeout = 2 * time.Second
	cfg.Email.MaxAttempts = 1
	cfg.Auth.Verify.TTL = time.Hour
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.Issuer = "verimail-test"
	cfg.Auth.AccessTTL = time.Hour
	cfg.Auth.Register.AutoLogin = true
	return cfg
}

func newTestHandler(t *testing.T, cfg *config.Config, sender email.Sender) http.Handler {
	t.Helper()
	d, err := email.NewDispatcherWith(cfg, sender)
	require.NoError(t, err)

	tokens := memory.NewTokenStore()
	users := memory.NewUserStore()
	vs := verify.NewService(cfg, tokens, users, d)
	iss := token.NewIssuer(cfg.Auth.Issuer, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)

	return NewRouter(NewAPI(cfg, users, vs, iss), nil)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func linkToken(t *testing.T, msg email.Message) string {
	t.Helper()
	i := strings.Index(msg.Text, "token=")
	require.GreaterOrEqual(t, i, 0, "no token in email body: %q", msg.Text)
	tok := msg.Text[i+len("token="):]
	if j := strings.IndexAny(tok, " \n\"<"); j >= 0 {
		tok = tok[:j]
	}
	return tok
}

func TestRegisterVerifyMeFlow(t *testing.T) {
	sender := &captureSender{}
	h := newTestHandler(t, testConfig(), sender)

	rr := postJSON(t, h, "/v1/auth/register", map[string]string{
		"email":    "Alice@Example.com",
		"password": "longenough",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	reg := decode[registerResponse](t, rr)
	require.NotEmpty(t, reg.UserID)
	require.Equal(t, "alice@example.com", reg.Email)
	require.NotEmpty(t, reg.AccessToken)
	require.Equal(t, "Bearer", reg.TokenType)

	// the verification email carries the link
	msg := sender.last(t)
	require.Equal(t, "alice@example.com", msg.To)
	tok := linkToken(t, msg)

	// /me before verification
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[meResponse](t, rr)
	require.False(t, me.EmailVerified)

	// confirm
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+tok, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// /me after verification
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	me = decode[meResponse](t, rr)
	require.True(t, me.EmailVerified)
	require.NotNil(t, me.VerifiedAt)

	// replay of the same token is rejected
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+tok, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterSucceedsWhenDeliveryFails(t *testing.T) {
	sender := &captureSender{fail: true}
	h := newTestHandler(t, testConfig(), sender)

	rr := postJSON(t, h, "/v1/auth/register", map[string]string{
		"email":    "bob@example.com",
		"password": "longenough",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decode[registerResponse](t, rr)
	require.NotEmpty(t, reg.UserID)
}

func TestRegisterValidation(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	rr := postJSON(t, h, "/v1/auth/register", map[string]string{"email": "", "password": ""})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, h, "/v1/auth/register", map[string]string{"email": "not-an-email", "password": "longenough"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, h, "/v1/auth/register", map[string]string{"email": "x@example.com", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	e := decode[apiError](t, rr)
	require.Equal(t, "weak_password", e.Error)
	require.Contains(t, e.Reasons, "too_short")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	body := map[string]string{"email": "dup@example.com", "password": "longenough"}
	require.Equal(t, http.StatusCreated, postJSON(t, h, "/v1/auth/register", body).Code)

	rr := postJSON(t, h, "/v1/auth/register", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "email_taken", decode[apiError](t, rr).Error)
}

func TestVerifyStartDoesNotLeakAccounts(t *testing.T) {
	sender := &captureSender{}
	h := newTestHandler(t, testConfig(), sender)

	require.Equal(t, http.StatusCreated, postJSON(t, h, "/v1/auth/register", map[string]string{
		"email": "real@example.com", "password": "longenough",
	}).Code)

	// existing unverified account and unknown account answer identically
	rr := postJSON(t, h, "/v1/auth/verify-email/start", map[string]string{"email": "real@example.com"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Body.String())

	rr = postJSON(t, h, "/v1/auth/verify-email/start", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Body.String())
}

func TestVerifyStartReissueInvalidatesOldToken(t *testing.T) {
	sender := &captureSender{}
	h := newTestHandler(t, testConfig(), sender)

	require.Equal(t, http.StatusCreated, postJSON(t, h, "/v1/auth/register", map[string]string{
		"email": "carol@example.com", "password": "longenough",
	}).Code)
	first := linkToken(t, sender.last(t))

	require.Equal(t, http.StatusNoContent, postJSON(t, h, "/v1/auth/verify-email/start", map[string]string{
		"email": "carol@example.com",
	}).Code)
	second := linkToken(t, sender.last(t))
	require.NotEqual(t, first, second)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+first, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+second, nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestVerifyConfirmGenericRejection(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	for _, tok := range []string{"", "garbage", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+tok, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "invalid_token", decode[apiError](t, rr).Error)
	}
}

func TestLoginFlow(t *testing.T) {
	sender := &captureSender{}
	h := newTestHandler(t, testConfig(), sender)

	require.Equal(t, http.StatusCreated, postJSON(t, h, "/v1/auth/register", map[string]string{
		"email": "erin@example.com", "password": "longenough",
	}).Code)

	// correct password before verification
	rr := postJSON(t, h, "/v1/auth/login", map[string]string{
		"email": "erin@example.com", "password": "longenough",
	})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "email_not_verified", decode[apiError](t, rr).Error)

	tok := linkToken(t, sender.last(t))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email?token="+tok, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, h, "/v1/auth/login", map[string]string{
		"email": "Erin@Example.com", "password": "longenough",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	login := decode[loginResponse](t, rr)
	require.NotEmpty(t, login.AccessToken)
	require.Equal(t, "Bearer", login.TokenType)

	// the issued token works against /me
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[meResponse](t, rr).EmailVerified)
}

func TestLoginGenericRejection(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	require.Equal(t, http.StatusCreated, postJSON(t, h, "/v1/auth/register", map[string]string{
		"email": "frank@example.com", "password": "longenough",
	}).Code)

	// wrong password on an existing account and unknown account answer identically
	wrongPass := postJSON(t, h, "/v1/auth/login", map[string]string{
		"email": "frank@example.com", "password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)

	unknown := postJSON(t, h, "/v1/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, unknown.Code)

	require.Equal(t, decode[apiError](t, wrongPass).Error, decode[apiError](t, unknown).Error)
	require.Equal(t, "invalid_credentials", decode[apiError](t, unknown).Error)
}

func TestMeRequiresAuth(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestDebugEchoLinks(t *testing.T) {
	cfg := testConfig()
	cfg.Email.DebugEchoLinks = true
	h := newTestHandler(t, cfg, &captureSender{})

	rr := postJSON(t, h, "/v1/auth/register", map[string]string{
		"email": "dave@example.com", "password": "longenough",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	reg := decode[registerResponse](t, rr)
	require.Contains(t, reg.VerifyLink, "https://app.example.com/verify?token=")
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRejectsNonJSONContentType(t *testing.T) {
	h := newTestHandler(t, testConfig(), &captureSender{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_json", decode[apiError](t, rr).Error)
}
