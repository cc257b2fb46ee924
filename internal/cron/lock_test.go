package cron

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func TestRedisLockLeasesAreExclusive(t *testing.T) {
	store := &memoryRedis{data: map[string]string{}}
	first, err := NewRedisLock(store, "tb:lock:cron:shared", "api-1", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "tb:lock:cron:shared", "api-2", time.Minute)
	ctx := context.Background()

	release, ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	if token, _ := store.Get(ctx, "tb:lock:cron:shared"); !strings.HasPrefix(token, "api-1/") {
		t.Fatalf("expected holder prefix, got %q", token)
	}
	if _, ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second holder must not acquire")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseKeepsForeignLease(t *testing.T) {
	store := &memoryRedis{data: map[string]string{}}
	lock, _ := NewRedisLock(store, "tb:lock:cron:shared", "api-1", time.Minute)
	ctx := context.Background()

	release, ok, _ := lock.Acquire(ctx)
	if !ok {
		t.Fatal("expected lease")
	}
	// simulate TTL expiry followed by another replica claiming the key
	store.data["tb:lock:cron:shared"] = "api-2/other"
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.data["tb:lock:cron:shared"] != "api-2/other" {
		t.Fatal("stale release must not delete a foreign lease")
	}

	delete(store.data, "tb:lock:cron:shared")
	if err := release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", "h", 0); err == nil {
		t.Fatal("expected client error")
	}
	if _, err := NewRedisLock(&memoryRedis{data: map[string]string{}}, " ", "h", 0); err == nil {
		t.Fatal("expected key error")
	}
	lock, err := NewRedisLock(&memoryRedis{data: map[string]string{}}, "k", "", 0)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if lock.ttl != defaultLockTTL || lock.holder != "cron" {
		t.Fatalf("unexpected defaults ttl=%s holder=%s", lock.ttl, lock.holder)
	}
}
