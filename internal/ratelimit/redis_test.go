package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

// RedisStoreがMemoryStoreと同じクォータ判定を返すことを検証
func TestRedisStore_QuotaSemantics(t *testing.T) {
	store, _ := newTestRedisStore(t)

	l := NewLimiter(store, []Bucket{
		{Name: BucketLogin, Quota: 3, Window: time.Minute},
	})

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := l.TryConsume(ctx, BucketLogin, "ip-1")
		if !allowed {
			t.Fatalf("request %d: allowed = false, want true", i+1)
		}
	}

	if allowed, _ := l.TryConsume(ctx, BucketLogin, "ip-1"); allowed {
		t.Error("4th request: allowed = true, want false")
	}
}

// TTL満了によりカウンタがリセットされることを検証
func TestRedisStore_WindowResetViaTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)

	ctx := context.Background()

	count, err := store.Incr(ctx, "rl:login:ip-2", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// miniredisの時計を進めてTTLを満了させる
	mr.FastForward(61 * time.Second)

	count, err = store.Incr(ctx, "rl:login:ip-2", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count after window = %d, want 1 (reset)", count)
	}
}

// 2回目以降のIncrで既存TTLが延長されないことを検証
func TestRedisStore_TTLNotExtended(t *testing.T) {
	store, mr := newTestRedisStore(t)

	ctx := context.Background()

	store.Incr(ctx, "rl:login:ip-3", time.Minute)
	mr.FastForward(30 * time.Second)
	store.Incr(ctx, "rl:login:ip-3", time.Minute)

	ttl := mr.TTL("rl:login:ip-3")
	if ttl > 30*time.Second {
		t.Errorf("TTL = %v, want <= 30s (not extended by second Incr)", ttl)
	}
}

// Redis接続断でIncrがエラーを返すことを検証（Limiter側でフェイルオープンされる）
func TestRedisStore_ErrorOnConnectionLoss(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	if _, err := store.Incr(context.Background(), "rl:login:ip-4", time.Minute); err == nil {
		t.Error("Incr() error = nil after redis close, want error")
	}
}
