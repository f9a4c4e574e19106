package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisSessionStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	s, err := NewRedisSessionStore("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("failed to connect session store: %v", err)
	}
	return s
}

func TestRedisSessionStoreSaveAndGet(t *testing.T) {
	s := newTestRedisSessionStore(t)
	sess := &PendingSession{
		State:     "state-1",
		Provider:  ProviderClaude,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(DefaultSessionTTL),
	}
	if err := s.Save(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get("state-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.State != "state-1" || got.Provider != ProviderClaude {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestRedisSessionStoreGetMissingReturnsNilNil(t *testing.T) {
	s := newTestRedisSessionStore(t)
	got, err := s.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}
}

func TestRedisSessionStoreDelete(t *testing.T) {
	s := newTestRedisSessionStore(t)
	sess := &PendingSession{
		State:     "state-2",
		Provider:  ProviderCodex,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(DefaultSessionTTL),
	}
	if err := s.Save(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete("state-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get("state-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected session deleted, got %+v", got)
	}
}

func TestRedisSessionStoreSweepExpiredIsNoop(t *testing.T) {
	s := newTestRedisSessionStore(t)
	n, err := s.SweepExpired()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
