package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/verimail/internal/store"
)

// TokenStore persists verification tokens as SHA-256 hashes (BYTEA).
type TokenStore struct{ DB DBOps }

func NewTokenStore(db DBOps) *TokenStore { return &TokenStore{DB: db} }

// Create revokes any still-active token for the user and inserts the new
// one inside a single transaction.
func (s *TokenStore) Create(ctx context.Context, userID uuid.UUID, sentTo string, ttl time.Duration) (string, error) {
	pt, hash, err := store.GenerateToken()
	if err != nil {
		return "", err
	}
	exp := time.Now().Add(ttl)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE email_verification_token
		   SET revoked_at = now()
		 WHERE user_id = $1
		   AND consumed_at IS NULL
		   AND revoked_at IS NULL
		   AND expires_at > now()`, userID); err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO email_verification_token
		    (user_id, token_hash, sent_to, expires_at)
		VALUES ($1, $2, $3, $4)`,
		userID, hash, sentTo, exp); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return pt, nil
}

// TryConsume is a single compare-and-set statement: the WHERE clause admits
// only a live token, so two concurrent calls can never both update the row.
func (s *TokenStore) TryConsume(ctx context.Context, plaintext string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.DB.QueryRow(ctx, `
		UPDATE email_verification_token
		   SET consumed_at = now()
		 WHERE token_hash = $1
		   AND consumed_at IS NULL
		   AND revoked_at IS NULL
		   AND expires_at > now()
		RETURNING user_id`, store.HashToken(plaintext),
	).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, store.ErrTokenInvalid
		}
		return uuid.Nil, err
	}
	return userID, nil
}

func (s *TokenStore) Get(ctx context.Context, plaintext string) (*store.TokenRecord, error) {
	var rec store.TokenRecord
	err := s.DB.QueryRow(ctx, `
		SELECT user_id, sent_to, created_at, expires_at, delivered_at, consumed_at, revoked_at
		  FROM email_verification_token
		 WHERE token_hash = $1`, store.HashToken(plaintext),
	).Scan(&rec.UserID, &rec.SentTo, &rec.IssuedAt, &rec.ExpiresAt,
		&rec.DeliveredAt, &rec.ConsumedAt, &rec.RevokedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrTokenInvalid
		}
		return nil, err
	}
	return &rec, nil
}

func (s *TokenStore) MarkDelivered(ctx context.Context, plaintext string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE email_verification_token
		   SET delivered_at = now()
		 WHERE token_hash = $1
		   AND delivered_at IS NULL`, store.HashToken(plaintext))
	return err
}
