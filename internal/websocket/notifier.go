package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/distributed"
	"go.uber.org/zap"
)

// Notifier 이 인스턴스에 연결된 플레이어에게 발차/타임아웃을 전달한다
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// NotifyLaunch 멤버 전원에게 같은 발차 정보를 보낸다
func (n *Notifier) NotifyLaunch(_ context.Context, launch models.Launch) {
	for _, member := range launch.Members {
		n.hub.SendToPlayer(member, MessageLaunch, launch)
	}
}

func (n *Notifier) NotifyEviction(_ context.Context, eviction models.Eviction) {
	n.hub.SendToPlayer(eviction.PlayerID, MessageEviction, eviction)
}

// Publisher 이벤트 발행자 (distributed.EventBus)
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Relay 알림을 이벤트 버스로 내보내고, 버스에서 받은 알림을 로컬 허브로 전달한다.
// 플레이어가 어느 인스턴스에 붙어 있든 한 번씩 받는다.
type Relay struct {
	bus    Publisher
	local  *Notifier
	logger *zap.Logger
}

func NewRelay(bus Publisher, hub *Hub, logger *zap.Logger) *Relay {
	return &Relay{bus: bus, local: NewNotifier(hub), logger: logger}
}

func (r *Relay) NotifyLaunch(ctx context.Context, launch models.Launch) {
	if err := r.bus.Publish(ctx, MessageLaunch, launch); err != nil {
		r.logger.Warn("Failed to publish launch, delivering locally",
			zap.String("queue", launch.Key.String()),
			zap.Error(err))
		r.local.NotifyLaunch(ctx, launch)
	}
}

func (r *Relay) NotifyEviction(ctx context.Context, eviction models.Eviction) {
	if err := r.bus.Publish(ctx, MessageEviction, eviction); err != nil {
		r.logger.Warn("Failed to publish eviction, delivering locally",
			zap.String("playerId", eviction.PlayerID),
			zap.Error(err))
		r.local.NotifyEviction(ctx, eviction)
	}
}

// Handle 이벤트 버스 핸들러
func (r *Relay) Handle(event distributed.Event) error {
	ctx := context.Background()
	switch event.Type {
	case MessageLaunch:
		var launch models.Launch
		if err := json.Unmarshal(event.Payload, &launch); err != nil {
			return fmt.Errorf("failed to decode launch: %w", err)
		}
		r.local.NotifyLaunch(ctx, launch)
	case MessageEviction:
		var eviction models.Eviction
		if err := json.Unmarshal(event.Payload, &eviction); err != nil {
			return fmt.Errorf("failed to decode eviction: %w", err)
		}
		r.local.NotifyEviction(ctx, eviction)
	default:
		r.logger.Debug("Ignoring unknown event", zap.String("type", event.Type))
	}
	return nil
}
