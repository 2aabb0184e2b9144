package service

import (
	"context"
	"sync"
)

// LocalKeyLocker 단일 프로세스용 키 락. 키 수는 모드 x 레벨 조합으로 한정되어 맵을 비우지 않는다.
type LocalKeyLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalKeyLocker LocalKeyLocker 생성
func NewLocalKeyLocker() *LocalKeyLocker {
	return &LocalKeyLocker{locks: make(map[string]chan struct{})}
}

// Lock 키 락 획득. ctx 가 취소되면 대기를 포기한다.
func (l *LocalKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
