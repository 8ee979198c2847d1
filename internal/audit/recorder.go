// Package audit は特権操作の監査ログ記録を提供する。
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/repository"
)

// DropMetric は破棄されたエントリをメトリクスに反映するためのインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type DropMetric interface {
	RecordAuditDropped()
}

// Recorder は監査ログを非同期で永続化するディスパッチャ。
// Recordは呼び出し元をブロックせず、エラーも返さない。
// 記録の失敗が本体の操作を失敗させることはない。
type Recorder struct {
	repo    repository.AuditLogRepository
	metric  DropMetric
	queue   chan *model.AuditLogEntry
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder はRecorderを生成し、バックグラウンドの書き込みループを開始する。
// bufferSizeはキュー容量。満杯時の記録は破棄され、metricに計上される。
// metricはnil可。
func NewRecorder(repo repository.AuditLogRepository, bufferSize int, metric DropMetric) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &Recorder{
		repo:   repo,
		metric: metric,
		queue:  make(chan *model.AuditLogEntry, bufferSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record は監査ログエントリをキューに積む。
// キューが満杯の場合はブロックせずに破棄し、警告ログとメトリクスに残す。
func (r *Recorder) Record(userID, action, entity, entityID string, metadata map[string]string) {
	entry := &model.AuditLogEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	select {
	case r.queue <- entry:
	default:
		n := r.dropped.Add(1)
		if r.metric != nil {
			r.metric.RecordAuditDropped()
		}
		slog.Warn("audit queue full, entry dropped",
			"action", action, "total_dropped", n)
	}
}

// Dropped は破棄されたエントリの累計数を返す。
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close はキューを閉じ、残りのエントリを書き切ってから戻る。
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) loop() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.Insert(ctx, entry); err != nil {
			slog.Error("failed to insert audit log",
				"action", entry.Action, "error", err)
		}
		cancel()
	}
}
