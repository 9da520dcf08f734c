package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/verimail/internal/store"
)

func TestTokenStore_CreateAndConsume(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()
	userID := uuid.New()

	pt, err := s.Create(ctx, userID, "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pt == "" {
		t.Fatal("empty plaintext token")
	}

	got, err := s.TryConsume(ctx, pt)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if got != userID {
		t.Fatalf("got user %s, want %s", got, userID)
	}

	// single use: a second consume is rejected
	if _, err := s.TryConsume(ctx, pt); err != store.ErrTokenInvalid {
		t.Fatalf("second consume: got %v, want ErrTokenInvalid", err)
	}
}

func TestTokenStore_ConcurrentConsume_ExactlyOneWins(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	pt, err := s.Create(ctx, uuid.New(), "alice@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.TryConsume(ctx, pt); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("got %d successful consumes, want exactly 1", successes)
	}
}

func TestTokenStore_ExpiredRejectedWithoutSweep(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	now := time.Now()
	s.SetNow(func() time.Time { return now })

	pt, err := s.Create(ctx, uuid.New(), "a@b.c", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// move the clock past expiry; the cache entry still exists
	now = now.Add(2 * time.Minute)
	if _, err := s.TryConsume(ctx, pt); err != store.ErrTokenInvalid {
		t.Fatalf("expired token consumed: %v", err)
	}
}

func TestTokenStore_UnknownTokenRejected(t *testing.T) {
	s := NewTokenStore()
	if _, err := s.TryConsume(context.Background(), "never-issued"); err != store.ErrTokenInvalid {
		t.Fatalf("got %v", err)
	}
}

func TestTokenStore_SingleActiveTokenPolicy(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()
	userID := uuid.New()

	first, err := s.Create(ctx, userID, "a@b.c", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Create(ctx, userID, "a@b.c", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	// issuing the second revoked the first
	if _, err := s.TryConsume(ctx, first); err != store.ErrTokenInvalid {
		t.Fatalf("revoked token consumed: %v", err)
	}
	if _, err := s.TryConsume(ctx, second); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
}

func TestTokenStore_MarkDeliveredIsAdvisory(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	pt, err := s.Create(ctx, uuid.New(), "a@b.c", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	// consume works without any delivered record
	rec, err := s.Get(ctx, pt)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DeliveredAt != nil {
		t.Fatal("fresh token already delivered")
	}

	if err := s.MarkDelivered(ctx, pt); err != nil {
		t.Fatal(err)
	}
	rec, err = s.Get(ctx, pt)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DeliveredAt == nil {
		t.Fatal("delivered timestamp not recorded")
	}

	if _, err := s.TryConsume(ctx, pt); err != nil {
		t.Fatalf("delivered token should still consume: %v", err)
	}
}
