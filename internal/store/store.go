// Package store defines the persistence contracts consumed by the
// verification flow: a single-use token store and a minimal user store.
// Implementations live in the pg and memory subpackages.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TokenRecord is the persisted state of one verification token. The
// plaintext token never touches storage: records are keyed by SHA-256 hash.
type TokenRecord struct {
	UserID      uuid.UUID
	SentTo      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	DeliveredAt *time.Time
	ConsumedAt  *time.Time
	RevokedAt   *time.Time
}

// Active reports whether the record can still be consumed at now.
func (r *TokenRecord) Active(now time.Time) bool {
	return r.ConsumedAt == nil && r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

var (
	// ErrTokenInvalid collapses not-found, expired, consumed and revoked
	// into one value so callers cannot distinguish (and leak) which
	// condition occurred.
	ErrTokenInvalid = errors.New("store: token invalid")

	ErrUserExists   = errors.New("store: user already exists")
	ErrUserNotFound = errors.New("store: user not found")
)

// VerificationTokens persists single-use verification tokens.
type VerificationTokens interface {
	// Create issues a fresh token bound to userID with the given TTL and
	// returns the plaintext exactly once. Any previously active token for
	// the same user is revoked in the same operation (single-active-token
	// policy).
	Create(ctx context.Context, userID uuid.UUID, sentTo string, ttl time.Duration) (plaintext string, err error)

	// TryConsume atomically marks the token consumed and returns the bound
	// user. Under concurrent calls with the same token exactly one
	// succeeds; every other call (and any expired, revoked or unknown
	// token) gets ErrTokenInvalid.
	TryConsume(ctx context.Context, plaintext string) (uuid.UUID, error)

	// Get returns the record for diagnostics; ErrTokenInvalid when absent.
	Get(ctx context.Context, plaintext string) (*TokenRecord, error)

	// MarkDelivered records the advisory delivered transition. Failures are
	// non-fatal for the verification flow.
	MarkDelivered(ctx context.Context, plaintext string) error
}

// User is an account record. Email verification state lives here.
type User struct {
	ID              uuid.UUID
	Email           string
	PasswordHash    string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// Users is the user-record collaborator of the verification flow.
type Users interface {
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// GenerateToken returns a fresh plaintext token (32 random bytes,
// base64url) and its storage hash.
func GenerateToken() (plaintext string, hash []byte, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", nil, err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(raw)
	h := sha256.Sum256([]byte(plaintext))
	return plaintext, h[:], nil
}

// HashToken maps a presented plaintext token to its storage hash.
func HashToken(plaintext string) []byte {
	h := sha256.Sum256([]byte(plaintext))
	return h[:]
}
