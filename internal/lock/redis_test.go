package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPrefix = "commission-ledger:lock:"

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLocker_AcquireSetsLease(t *testing.T) {
	mr, rdb := setupRedis(t)
	locker := NewRedisLocker(rdb, testPrefix, 30*time.Second, 5*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "refund:in_1:aff1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !mr.Exists(testPrefix + "refund:in_1:aff1") {
		t.Fatal("Expected lease key to exist")
	}
	if ttl := mr.TTL(testPrefix + "refund:in_1:aff1"); ttl != 30*time.Second {
		t.Errorf("Expected 30s lease, got %v", ttl)
	}

	release()
	if mr.Exists(testPrefix + "refund:in_1:aff1") {
		t.Error("Expected lease key to be deleted on release")
	}
	release()
}

func TestRedisLocker_Contention(t *testing.T) {
	_, rdb := setupRedis(t)
	first := NewRedisLocker(rdb, testPrefix, 30*time.Second, 5*time.Millisecond)
	second := NewRedisLocker(rdb, testPrefix, 30*time.Second, 5*time.Millisecond)

	release, err := first.Acquire(context.Background(), "refund:in_1:aff1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err = second.Acquire(ctx, "refund:in_1:aff1")
	cancel()
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout while the lease is held, got %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r, err := second.Acquire(ctx, "refund:in_1:aff1")
		if err == nil {
			r()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	if err := <-acquired; err != nil {
		t.Errorf("Expected waiter to acquire after release, got %v", err)
	}
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr, rdb := setupRedis(t)
	locker := NewRedisLocker(rdb, testPrefix, time.Second, 5*time.Millisecond)
	key := testPrefix + "refund:in_1:aff1"

	staleRelease, err := locker.Acquire(context.Background(), "refund:in_1:aff1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The first holder's lease expires and another process takes the key
	mr.FastForward(2 * time.Second)
	if mr.Exists(key) {
		t.Fatal("Expected expired lease to be gone")
	}
	release, err := locker.Acquire(context.Background(), "refund:in_1:aff1")
	if err != nil {
		t.Fatalf("Second Acquire failed: %v", err)
	}
	current, err := mr.Get(key)
	if err != nil {
		t.Fatalf("Failed to read lease: %v", err)
	}

	staleRelease()
	if got, err := mr.Get(key); err != nil || got != current {
		t.Errorf("Expected lease %q to survive a stale release, got %q (%v)", current, got, err)
	}

	release()
	if mr.Exists(key) {
		t.Error("Expected lease to be deleted by its holder")
	}
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	mr, rdb := setupRedis(t)
	locker := NewRedisLocker(rdb, testPrefix, time.Second, 5*time.Millisecond)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := locker.Acquire(ctx, "refund:in_1:aff1")
	if err == nil {
		t.Fatal("Expected error when redis is unreachable")
	}
	if errors.Is(err, ErrLockTimeout) {
		t.Errorf("Expected a connection error rather than a lock timeout, got %v", err)
	}
}
