// Package ratelimit は固定ウィンドウ方式のレート制限を提供する。
// ポリシー（バケット定義）とカウンタの保存先（CounterStore）を分離しており、
// 単一インスタンスではインメモリ、複数インスタンスではRedisを注入する。
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// CounterStore はウィンドウ付きカウンタの保存先インターフェース。
// Incrはキーの現在ウィンドウにおけるカウンタをインクリメントし、
// インクリメント後の値を返す。ウィンドウが切り替わるとカウンタは0から再開する。
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Bucket はレート制限の1ポリシーを表す。
// Quota回/Windowを超えたリクエストは拒否される。
type Bucket struct {
	Name   string
	Quota  int64
	Window time.Duration
}

// 既定のバケット名。
const (
	BucketLogin    = "login"
	BucketReset    = "password_reset"
	BucketMutation = "mutation"
	BucketExport   = "export"
)

// Limiter は名前付きバケットごとのレート制限判定を行う。
type Limiter struct {
	store   CounterStore
	buckets map[string]Bucket
}

// NewLimiter はLimiterを生成する。
func NewLimiter(store CounterStore, buckets []Bucket) *Limiter {
	m := make(map[string]Bucket, len(buckets))
	for _, b := range buckets {
		m[b.Name] = b
	}
	return &Limiter{store: store, buckets: m}
}

// TryConsume は指定バケット・キーで1リクエスト分のクォータ消費を試みる。
// クォータ超過の場合はallowed=falseと再試行までの目安時間を返す。
// キューイングや再試行は行わず、呼び出し側がエラー応答に変換する。
// カウンタストア障害時は警告ログを出してフェイルオープンする
// （レート制限は防御層であり、ストア障害で全リクエストを落とさない）。
func (l *Limiter) TryConsume(ctx context.Context, bucket, key string) (allowed bool, retryAfter time.Duration) {
	b, ok := l.buckets[bucket]
	if !ok {
		// 未定義バケットは制限なしとして扱う
		slog.Warn("rate limit bucket not defined", slog.String("bucket", bucket))
		return true, 0
	}

	count, err := l.store.Incr(ctx, "rl:"+b.Name+":"+key, b.Window)
	if err != nil {
		slog.Warn("rate limit counter store unavailable, failing open",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()),
		)
		return true, 0
	}

	if count > b.Quota {
		return false, b.Window
	}
	return true, 0
}
