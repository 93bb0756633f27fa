package notes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
)

// Sweeper 定期清理过期笔记，仅用于没有原生 TTL 的存储
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   *logx.Logger

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
	running  atomic.Bool
	removed  atomic.Int64
}

func NewSweeper(purger Purger, interval time.Duration, logger *logx.Logger) *Sweeper {
	if logger == nil {
		logger = logx.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		purger:   purger,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info(ctx, "note sweeper started", logx.KV("interval", s.interval))
	go s.sweepLoop(ctx)
}

// Stop 停止清理并等待循环退出
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stopChan) })
	if s.running.Load() {
		<-s.done
	}
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge pass.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "note sweep failed", logx.KV("error", err))
		return 0, err
	}
	s.removed.Add(int64(n))
	if n > 0 {
		s.logger.Info(ctx, "expired notes removed", logx.KV("count", n), logx.KV("duration", time.Since(start)))
	} else {
		s.logger.Debug(ctx, "note sweep found nothing")
	}
	return n, nil
}

// Removed is the total number of notes purged by this sweeper.
func (s *Sweeper) Removed() int64 {
	return s.removed.Load()
}
