// Package verify drives the verification token lifecycle:
// Issued -> Delivered (advisory) -> Consumed | Expired.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/verimail/internal/audit"
	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/email"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
	"github.com/dropDatabas3/verimail/internal/store"
	"github.com/dropDatabas3/verimail/internal/util"
)

// ErrInvalidToken is the single user-visible rejection for every token
// failure (unknown, expired, consumed, revoked). Collapsing them prevents
// enumeration of valid tokens.
var ErrInvalidToken = errors.New("verify: invalid or expired token")

// Issued describes a freshly issued verification challenge.
type Issued struct {
	// Token is the plaintext, returned exactly once. Handlers only expose
	// it when debug link echoing is enabled.
	Token     string
	Link      string
	ExpiresAt time.Time

	// Outcome of the delivery attempt. Zero-valued when dispatch ran
	// asynchronously and has not resolved yet.
	Outcome email.Outcome
}

// Service owns token issuance and consumption. Delivery goes through the
// Dispatcher; persistence through the token and user stores.
type Service struct {
	cfg        *config.Config
	tokens     store.VerificationTokens
	users      store.Users
	dispatcher *email.Dispatcher
}

func NewService(cfg *config.Config, tokens store.VerificationTokens, users store.Users, d *email.Dispatcher) *Service {
	return &Service{cfg: cfg, tokens: tokens, users: users, dispatcher: d}
}

// Start issues a fresh token for the user and dispatches the verification
// email. Issuing a new token revokes the previous active one
// (single-active-token policy, enforced by the store). Delivery is a
// best-effort side effect: a failed or pending dispatch never fails
// issuance, only the token store can.
func (s *Service) Start(ctx context.Context, user *store.User) (*Issued, error) {
	ttl := s.cfg.Auth.Verify.TTL
	plaintext, err := s.tokens.Create(ctx, user.ID, user.Email, ttl)
	if err != nil {
		return nil, err
	}

	issued := &Issued{
		Token:     plaintext,
		Link:      s.dispatcher.VerificationLink(plaintext),
		ExpiresAt: time.Now().Add(ttl),
	}
	audit.Log(ctx, audit.EventVerifyIssued, map[string]any{
		"user_id":    user.ID.String(),
		"email":      util.MaskEmail(user.Email),
		"expires_at": issued.ExpiresAt.UTC(),
	})

	if s.cfg.Email.Async {
		outCh := s.dispatcher.DispatchAsync(user.Email, plaintext)
		go s.recordDelivery(plaintext, outCh)
		return issued, nil
	}

	issued.Outcome = s.dispatcher.TrySendVerificationEmail(ctx, user.Email, plaintext)
	if issued.Outcome.Sent {
		if err := s.tokens.MarkDelivered(ctx, plaintext); err != nil {
			// advisory only: the token still verifies without this record
			logger.From(ctx).Debug("mark delivered failed", logger.Err(err))
		}
	} else {
		// exactly one log line per failed dispatch, stable format
		logger.From(ctx).Warn("email_dispatch_failed",
			logger.Provider(string(issued.Outcome.Provider)),
			logger.String("reason", issued.Outcome.Reason),
			logger.UserID(user.ID.String()),
		)
	}
	return issued, nil
}

// recordDelivery waits for an async outcome and records the advisory
// Delivered transition. DispatchAsync already logged any failure.
func (s *Service) recordDelivery(plaintext string, outCh <-chan email.Outcome) {
	o := <-outCh
	if !o.Sent {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tokens.MarkDelivered(ctx, plaintext); err != nil {
		logger.L().Debug("mark delivered failed", logger.Err(err))
	}
}

// Confirm consumes the presented token and marks the bound user verified.
// Consumption is atomic in the store: with two concurrent calls for the
// same token exactly one reaches the MarkEmailVerified line.
func (s *Service) Confirm(ctx context.Context, plaintext string) (*store.User, error) {
	userID, err := s.tokens.TryConsume(ctx, plaintext)
	if err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
