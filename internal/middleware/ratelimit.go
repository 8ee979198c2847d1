package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/gakuen/internal/metrics"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/ratelimit"
)

// KeyFunc はレート制限のカウンタキーをリクエストから導出する関数。
type KeyFunc func(r *http.Request) string

// KeyByIP はリモートIPアドレスをキーとして返す。
// 未認証エンドポイント（ログイン・パスワードリセット）用。
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyByUser は認証済みユーザーIDをキーとして返す。
// 認証ミドルウェアの後に配置されたエンドポイント用。
func KeyByUser(r *http.Request) string {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		// 認証前に到達した場合はIPにフォールバック
		return KeyByIP(r)
	}
	return identity.UserID
}

// NewBucketLimitMiddleware は名前付きバケットのレート制限ミドルウェアを返す。
// クォータ超過時は429とRetry-Afterヘッダーを返す。
func NewBucketLimitMiddleware(limiter *ratelimit.Limiter, bucket string, keyFunc KeyFunc, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.TryConsume(r.Context(), bucket, keyFunc(r))
			if !allowed {
				slog.Warn("rate limit exceeded",
					slog.String("bucket", bucket),
					slog.String("path", r.URL.Path),
				)
				if collector != nil {
					collector.RecordRateLimitDenied(bucket)
				}
				writeRateLimitResponse(w, int(math.Ceil(retryAfter.Seconds())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// GeneralRateLimiter は認証済みAPI全般のユーザーごとレート制限を管理する。
// 名前付きバケット（ログイン・リセット等）とは独立したトークンバケット方式で、
// 単一ユーザーによるAPI全体の占有を防ぐ。
type GeneralRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*userLimiter

	cleanupInterval time.Duration
	stopCh          chan struct{}
}

// NewGeneralRateLimiter は新しいGeneralRateLimiterを生成する。
// requestsPerMinuteは1ユーザーあたりの毎分リクエスト上限。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewGeneralRateLimiter(requestsPerMinute int) *GeneralRateLimiter {
	rl := &GeneralRateLimiter{
		limit:           rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:           requestsPerMinute,
		limiters:        make(map[string]*userLimiter),
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *GeneralRateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにIdentityが含まれている必要がある（認証ミドルウェアの後に配置）。
func (rl *GeneralRateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			limiter := rl.getOrCreateLimiter(identity.UserID)

			if !limiter.Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", identity.UserID),
					slog.String("limit_type", "general"),
				)
				retryAfterSec := int(math.Ceil(1.0 / float64(rl.limit)))
				if retryAfterSec < 1 {
					retryAfterSec = 1
				}
				writeRateLimitResponse(w, retryAfterSec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *GeneralRateLimiter) LimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// getOrCreateLimiter はユーザーのリミッターを取得または作成する。
func (rl *GeneralRateLimiter) getOrCreateLimiter(userID string) *rate.Limiter {
	rl.mu.RLock()
	ul, exists := rl.limiters[userID]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		ul.lastAccess = time.Now()
		rl.mu.Unlock()
		return ul.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ダブルチェック
	if ul, exists := rl.limiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *GeneralRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がcleanupIntervalの2倍を超えたエントリを削除する。
func (rl *GeneralRateLimiter) cleanup() {
	ttl := rl.cleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	for userID, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, userID)
		}
	}
	rl.mu.Unlock()
}

// writeRateLimitResponse は429 Too Many RequestsレスポンスとRetry-Afterヘッダーを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewTooManyRequestsError())
}
