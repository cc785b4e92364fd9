package joblock

import (
	"context"
	"testing"
	"time"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn          func(ctx context.Context, key string) ([]byte, error)
	setNXWithTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	delFn          func(ctx context.Context, key string) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SetNXWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if m.setNXWithTTLFn != nil {
		return m.setNXWithTTLFn(ctx, key, value, ttl)
	}
	return true, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func TestAcquire(t *testing.T) {
	ms := &mockStore{}
	l := New(ms, 5*time.Minute)

	var gotKey string
	var gotTTL time.Duration
	ms.setNXWithTTLFn = func(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
		gotKey = key
		gotTTL = ttl
		if string(value) != "r1" {
			t.Errorf("unexpected holder: %s", value)
		}
		return true, nil
	}

	ok, err := l.Acquire(context.Background(), "j1", "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected acquisition")
	}
	if gotKey != domain.KeyPrefix+"job_lock:j1" {
		t.Fatalf("unexpected key: %s", gotKey)
	}
	if gotTTL != 5*time.Minute {
		t.Fatalf("unexpected ttl: %v", gotTTL)
	}
}

func TestAcquire_Held(t *testing.T) {
	ms := &mockStore{}
	l := New(ms, time.Minute)

	ms.setNXWithTTLFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) (bool, error) {
		return false, nil
	}

	ok, err := l.Acquire(context.Background(), "j1", "r2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected acquisition to fail")
	}
}

func TestRelease_Owner(t *testing.T) {
	ms := &mockStore{}
	l := New(ms, time.Minute)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("r1"), nil
	}
	var deleted bool
	ms.delFn = func(_ context.Context, _ string) error {
		deleted = true
		return nil
	}

	if err := l.Release(context.Background(), "j1", "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("expected lock deletion")
	}
}

func TestRelease_NotOwner(t *testing.T) {
	ms := &mockStore{}
	l := New(ms, time.Minute)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("r2"), nil
	}
	ms.delFn = func(_ context.Context, _ string) error {
		t.Fatal("must not delete a lock held by another run")
		return nil
	}

	if err := l.Release(context.Background(), "j1", "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRelease_Expired(t *testing.T) {
	l := New(&mockStore{}, time.Minute)

	if err := l.Release(context.Background(), "j1", "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
