package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sweepTarget 한 번 훑기 (CrewService.Sweep)
type sweepTarget interface {
	Sweep(ctx context.Context) (int, error)
}

// EvictionSweeper 주기적으로 모든 대기열을 읽어 만료 엔트리를 정리한다.
// 만료 처리 자체는 읽기 시점에 일어나므로 이 루프 없이도 정확성은 같다.
type EvictionSweeper struct {
	target   sweepTarget
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewEvictionSweeper(target sweepTarget, interval time.Duration, logger *zap.Logger) *EvictionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvictionSweeper{
		target:   target,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start interval 이 0 이하이면 아무것도 하지 않는다
func (s *EvictionSweeper) Start() {
	if s.interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting eviction sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop()
}

func (s *EvictionSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Eviction sweeper stopped")
}

func (s *EvictionSweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopChan:
			return
		}
	}
}

func (s *EvictionSweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.target.Sweep(ctx)
	if err != nil {
		s.logger.Error("Eviction sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Evicted expired queue entries", zap.Int("count", n))
	}
}
