package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/verimail/internal/audit"
	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
	"github.com/dropDatabas3/verimail/internal/security/password"
	"github.com/dropDatabas3/verimail/internal/security/token"
	"github.com/dropDatabas3/verimail/internal/store"
	"github.com/dropDatabas3/verimail/internal/util"
	"github.com/dropDatabas3/verimail/internal/validation"
	"github.com/dropDatabas3/verimail/internal/verify"
)

// API holds the handler dependencies. Construct with NewAPI and mount via
// NewRouter.
type API struct {
	Cfg    *config.Config
	Users  store.Users
	Verify *verify.Service
	Issuer *token.Issuer
	Policy password.Policy

	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(r *http.Request) error
}

func NewAPI(cfg *config.Config, users store.Users, vs *verify.Service, iss *token.Issuer) *API {
	return &API{
		Cfg:    cfg,
		Users:  users,
		Verify: vs,
		Issuer: iss,
		Policy: password.DefaultPolicy,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	VerifyLink  string `json:"verify_link,omitempty"`
}

// handleRegister creates the account and kicks off email verification.
// A failed verification email never fails the registration: the account
// exists either way and the client can hit verify-email/start again.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "email and password are required")
		return
	}
	if !validation.ValidEmail(in.Email) {
		WriteError(w, http.StatusBadRequest, "invalid_email", "email is not valid")
		return
	}
	if ok, reasons := a.Policy.Validate(in.Password); !ok {
		WriteErrorReasons(w, http.StatusBadRequest, "weak_password", "password does not meet policy", reasons)
		return
	}

	hash, err := password.Hash(password.Default, in.Password)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "register_failed", "could not hash password")
		return
	}

	u, err := a.Users.Create(r.Context(), in.Email, hash)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			WriteError(w, http.StatusConflict, "email_taken", "an account with that email already exists")
			return
		}
		logger.From(r.Context()).Error("user create failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "register_failed", "could not create user")
		return
	}

	issued, err := a.Verify.Start(r.Context(), u)
	if err != nil {
		// token store failure only; the account is live, so report it but
		// keep the registration successful
		logger.From(r.Context()).Error("verification issue failed", logger.Err(err), logger.UserID(u.ID.String()))
	}

	audit.Log(r.Context(), audit.EventUserRegistered, map[string]any{
		"user_id": u.ID.String(),
		"email":   util.MaskEmail(u.Email),
	})

	out := registerResponse{UserID: u.ID.String(), Email: u.Email}
	if a.Cfg.Email.DebugEchoLinks && issued != nil {
		out.VerifyLink = issued.Link
	}
	if a.Cfg.Auth.Register.AutoLogin {
		signed, exp, err := a.Issuer.IssueAccess(token.Claims{UserID: u.ID.String(), Email: u.Email})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "issue_failed", "could not issue access token")
			return
		}
		out.AccessToken = signed
		out.TokenType = "Bearer"
		out.ExpiresIn = int64(time.Until(exp).Seconds())
	}
	WriteJSON(w, http.StatusCreated, out)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// dummyHash is verified against when the account does not exist, so the
// not-found path costs the same as a wrong password.
var dummyHash = func() string {
	h, _ := password.Hash(password.Default, "equalize-timing")
	return h
}()

// handleLogin checks credentials and issues an access token. Unknown
// account and wrong password answer identically; an unverified account is
// told so only after its password checked out.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "email and password are required")
		return
	}

	u, err := a.Users.GetByEmail(r.Context(), in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			logger.From(r.Context()).Error("user lookup failed", logger.Err(err))
		}
		password.Verify(in.Password, dummyHash)
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if !password.Verify(in.Password, u.PasswordHash) {
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if u.EmailVerifiedAt == nil {
		WriteError(w, http.StatusForbidden, "email_not_verified", "verify your email before logging in")
		return
	}

	signed, exp, err := a.Issuer.IssueAccess(token.Claims{UserID: u.ID.String(), Email: u.Email, EmailVerified: true})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "issue_failed", "could not issue access token")
		return
	}

	audit.Log(r.Context(), audit.EventUserLoggedIn, map[string]any{
		"user_id": u.ID.String(),
		"email":   util.MaskEmail(u.Email),
	})

	WriteJSON(w, http.StatusOK, loginResponse{
		UserID:      u.ID.String(),
		Email:       u.Email,
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	})
}

type verifyStartRequest struct {
	Email string `json:"email"`
}

// handleVerifyStart issues (or reissues) a verification token. The
// response is 204 regardless of whether the account exists or is already
// verified, so the endpoint cannot be used to probe for accounts.
func (a *API) handleVerifyStart(w http.ResponseWriter, r *http.Request) {
	var in verifyStartRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "email is required")
		return
	}

	u, err := a.Users.GetByEmail(r.Context(), in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			logger.From(r.Context()).Error("user lookup failed", logger.Err(err))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if u.EmailVerifiedAt != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := a.Verify.Start(r.Context(), u); err != nil {
		logger.From(r.Context()).Error("verification issue failed", logger.Err(err), logger.UserID(u.ID.String()))
		WriteError(w, http.StatusInternalServerError, "verify_failed", "could not issue verification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVerifyConfirm consumes the token from the query string. Every
// failure mode answers with the same generic rejection.
func (a *API) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimSpace(r.URL.Query().Get("token"))
	if tok == "" {
		WriteError(w, http.StatusBadRequest, "invalid_token", "invalid or expired token")
		return
	}

	u, err := a.Verify.Confirm(r.Context(), tok)
	if err != nil {
		if errors.Is(err, verify.ErrInvalidToken) {
			WriteError(w, http.StatusBadRequest, "invalid_token", "invalid or expired token")
			return
		}
		logger.From(r.Context()).Error("verification confirm failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "could not confirm verification")
		return
	}

	audit.Log(r.Context(), audit.EventEmailVerified, map[string]any{
		"user_id": u.ID.String(),
		"email":   util.MaskEmail(u.Email),
	})

	resp := map[string]any{"status": "verified", "email": u.Email}
	if a.Cfg.Auth.Register.AutoLogin {
		if signed, exp, err := a.Issuer.IssueAccess(token.Claims{UserID: u.ID.String(), Email: u.Email, EmailVerified: true}); err == nil {
			resp["access_token"] = signed
			resp["token_type"] = "Bearer"
			resp["expires_in"] = int64(time.Until(exp).Seconds())
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type meResponse struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	u, err := a.Users.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "account not found")
		return
	}
	WriteJSON(w, http.StatusOK, meResponse{
		UserID:        u.ID.String(),
		Email:         u.Email,
		EmailVerified: u.EmailVerifiedAt != nil,
		CreatedAt:     u.CreatedAt,
		VerifiedAt:    u.EmailVerifiedAt,
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.Ready != nil {
		if err := a.Ready(r); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
