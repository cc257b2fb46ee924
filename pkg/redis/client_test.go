package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	now := time.Date(2026, 10, 17, 9, 0, 10, 0, time.UTC)
	client := &Client{store: mock, now: func() time.Time { return now }}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "session:ip", 2, time.Minute)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("call %d: got allowed=%v count=%d", i, allowed, count)
		}
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute+time.Second {
		t.Fatalf("expected one expire on the first hit, got %+v", mock.expireCalls)
	}
	wantKey := client.RateLimitKey("session:ip", now.Truncate(time.Minute).Unix())
	if mock.expireCalls[0].key != wantKey {
		t.Fatalf("expected expire on %s, got %s", wantKey, mock.expireCalls[0].key)
	}

	// the next window starts a fresh counter
	now = now.Add(time.Minute)
	allowed, count, err := client.FixedWindowAllow(ctx, "session:ip", 2, time.Minute)
	if err != nil || !allowed || count != 1 {
		t.Fatalf("expected fresh window, got allowed=%v count=%d err=%v", allowed, count, err)
	}

	if _, _, err := client.FixedWindowAllow(ctx, "session:ip", 2, 0); err == nil {
		t.Fatalf("expected zero window to be rejected")
	}
}

func TestCartSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	payload := []byte(`{"lines":[]}`)
	if err := client.SaveCartSnapshot(ctx, "sess-1", payload, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if ttl := mock.ttls["tb:cart:sess-1"]; ttl != time.Hour {
		t.Fatalf("expected snapshot ttl 1h, got %v", ttl)
	}
	got, err := client.LoadCartSnapshot(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected stored payload, got %q", got)
	}

	if err := client.DeleteCartSnapshot(ctx, "sess-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := client.LoadCartSnapshot(ctx, "sess-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := client.SaveCartSnapshot(ctx, "", payload, time.Hour); err == nil {
		t.Fatalf("expected empty session id to be rejected")
	}
	if _, err := client.LoadCartSnapshot(ctx, ""); err == nil {
		t.Fatalf("expected empty session id to be rejected on load")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error on nil store")
	}
	if _, err := client.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected get error on nil store")
	}
	if _, _, err := client.FixedWindowAllow(context.Background(), "s", 1, time.Second); err == nil {
		t.Fatalf("expected rate limit error on nil store")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected missing address error")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 20, DB: 5})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 20 {
		t.Fatalf("url db must win and pool size fill in, got db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "tb:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope", 1760000000); got != "tb:rate_limit:scope:1760000000" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.CartSnapshotKey("abc"); got != "tb:cart:abc" {
		t.Fatalf("unexpected cart key %s", got)
	}
	if got := client.LockKey("eviction:worker-0"); got != "tb:lock:eviction:worker-0" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("scope", ""); got != "tb:idempotency:scope" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

type mockCmdable struct {
	data        map[string]string
	ttls        map[string]time.Duration
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = stringify(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = stringify(value)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func stringify(value any) string {
	if raw, ok := value.([]byte); ok {
		return string(raw)
	}
	return fmt.Sprint(value)
}
