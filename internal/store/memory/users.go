package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/verimail/internal/store"
)

// UserStore is a map-backed Users implementation.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*store.User
	byEmail map[string]uuid.UUID
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[uuid.UUID]*store.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *UserStore) Create(_ context.Context, email, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := emailKey(email)
	if _, exists := s.byEmail[k]; exists {
		return nil, store.ErrUserExists
	}
	u := &store.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.byID[u.ID] = u
	s.byEmail[k] = u.ID
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return store.ErrUserNotFound
	}
	if u.EmailVerifiedAt == nil {
		t := time.Now()
		u.EmailVerifiedAt = &t
	}
	return nil
}
