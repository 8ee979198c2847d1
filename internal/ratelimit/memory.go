package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセスローカルな固定ウィンドウカウンタ。
// 状態はプロセス再起動で失われ、複数インスタンス間では共有されない。
// 単一インスタンス構成での利用を想定した保存先であり、
// 複数インスタンス構成ではRedisStoreを使用すること。
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
	stopCh   chan struct{}
}

// windowCounter は1キーの現在ウィンドウのカウンタを保持する。
type windowCounter struct {
	windowStart time.Time
	window      time.Duration
	count       int64
}

// NewMemoryStore はMemoryStoreを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Incr はキーの現在ウィンドウのカウンタをインクリメントし、更新後の値を返す。
// ウィンドウ経過後の呼び出しではカウンタが1から再開する。
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	wc, exists := s.counters[key]
	if !exists || now.Sub(wc.windowStart) >= window {
		wc = &windowCounter{
			windowStart: now,
			window:      window,
			count:       0,
		}
		s.counters[key] = wc
	}

	wc.count++
	return wc.count, nil
}

// Len は現在保持しているカウンタのエントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup はウィンドウを経過したエントリを削除する。
func (s *MemoryStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, wc := range s.counters {
		if now.Sub(wc.windowStart) >= wc.window {
			delete(s.counters, key)
		}
	}
}

var _ CounterStore = (*MemoryStore)(nil)
