package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisを共有カウンタストアとして使用する固定ウィンドウカウンタ。
// 複数インスタンス構成でレート制限の判定を共有する場合に使用する。
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Incr はキーのカウンタをインクリメントし、更新後の値を返す。
// 最初のインクリメント時のみウィンドウ長のTTLを設定することで、
// TTL満了と同時にカウンタが消え、固定ウィンドウのリセットが実現される。
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NXにより既存TTLは延長されない
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val(), nil
}

var _ CounterStore = (*RedisStore)(nil)
