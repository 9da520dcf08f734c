// Package memory provides in-process store implementations for development
// and tests.
package memory

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/verimail/internal/store"
)

// TokenStore keeps verification tokens in a go-cache backed map. The cache's
// janitor sweeps long-expired entries; correctness does not depend on the
// sweep because every lookup checks expiry itself.
type TokenStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:   time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *TokenStore) SetNow(now func() time.Time) { s.now = now }

func key(hash []byte) string { return hex.EncodeToString(hash) }

func (s *TokenStore) Create(_ context.Context, userID uuid.UUID, sentTo string, ttl time.Duration) (string, error) {
	plaintext, hash, err := store.GenerateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// single-active-token: revoke whatever is still active for this user
	for _, item := range s.cache.Items() {
		rec := item.Object.(*store.TokenRecord)
		if rec.UserID == userID && rec.Active(now) {
			t := now
			rec.RevokedAt = &t
		}
	}

	rec := &store.TokenRecord{
		UserID:    userID,
		SentTo:    sentTo,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	// keep the entry around past expiry; lookups reject it by timestamp
	s.cache.Set(key(hash), rec, 2*ttl)
	return plaintext, nil
}

func (s *TokenStore) TryConsume(_ context.Context, plaintext string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key(store.HashToken(plaintext)))
	if !ok {
		return uuid.Nil, store.ErrTokenInvalid
	}
	rec := v.(*store.TokenRecord)
	if !rec.Active(s.now()) {
		return uuid.Nil, store.ErrTokenInvalid
	}
	t := s.now()
	rec.ConsumedAt = &t
	return rec.UserID, nil
}

func (s *TokenStore) Get(_ context.Context, plaintext string) (*store.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key(store.HashToken(plaintext)))
	if !ok {
		return nil, store.ErrTokenInvalid
	}
	rec := *(v.(*store.TokenRecord)) // copy, callers must not mutate shared state
	return &rec, nil
}

func (s *TokenStore) MarkDelivered(_ context.Context, plaintext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key(store.HashToken(plaintext)))
	if !ok {
		return store.ErrTokenInvalid
	}
	rec := v.(*store.TokenRecord)
	if rec.DeliveredAt == nil {
		t := s.now()
		rec.DeliveredAt = &t
	}
	return nil
}
