package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/verimail/internal/store"
)

// UserStore persists accounts in app_user.
type UserStore struct{ DB DBOps }

func NewUserStore(db DBOps) *UserStore { return &UserStore{DB: db} }

func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*store.User, error) {
	var u store.User
	err := s.DB.QueryRow(ctx, `
		INSERT INTO app_user (email, password_hash)
		VALUES (lower($1), $2)
		RETURNING id, email, password_hash, email_verified_at, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, store.ErrUserExists
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	var u store.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, email_verified_at, created_at
		  FROM app_user
		 WHERE email = lower($1)`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var u store.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, email_verified_at, created_at
		  FROM app_user
		 WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE app_user
		   SET email_verified_at = now()
		 WHERE id = $1
		   AND email_verified_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// already verified or unknown: distinguish for the caller
		var exists bool
		if err := s.DB.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM app_user WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrUserNotFound
		}
	}
	return nil
}
