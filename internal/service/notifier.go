package service

import (
	"context"

	"github.com/576576/hadesstar-bot/internal/models"
)

// MultiNotifier 여러 Notifier 로 팬아웃
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyLaunch(ctx context.Context, launch models.Launch) {
	for _, n := range m {
		n.NotifyLaunch(ctx, launch)
	}
}

func (m MultiNotifier) NotifyEviction(ctx context.Context, eviction models.Eviction) {
	for _, n := range m {
		n.NotifyEviction(ctx, eviction)
	}
}
