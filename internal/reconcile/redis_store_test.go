package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisPutTake(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()
	ctx := context.Background()

	entry := Pending{DraftID: "d1", CreatedAt: time.Now().UTC()}
	if err := store.Put(ctx, "id-1", entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	p, err := store.Take(ctx, "id-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if p.DraftID != "d1" {
		t.Errorf("unexpected entry %+v", p)
	}

	// Take removes the key, so a second approval attempt fails.
	if _, err := store.Take(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after consume, got %v", err)
	}
}

func TestRedisExpiry(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "stale", Pending{DraftID: "d1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	if _, err := store.Take(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired entry, got %v", err)
	}
}

func TestRedisTakeUnknown(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	if _, err := store.Take(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
