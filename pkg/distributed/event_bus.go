package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event 인스턴스 간에 전달되는 알림
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Origin    string          `json:"origin"` // 발행한 인스턴스 ID
	Timestamp time.Time       `json:"timestamp"`
}

// EventBus Redis Pub/Sub 기반 이벤트 버스. 모든 구독 인스턴스가 같은 이벤트를 받는다.
type EventBus struct {
	client     redis.UniversalClient
	logger     *zap.Logger
	instanceID string
	channel    string

	mu        sync.Mutex
	stopOnce  sync.Once
	stopChan  chan struct{}
	cancelSub context.CancelFunc
}

// NewEventBus 이벤트 버스 생성
func NewEventBus(client redis.UniversalClient, channel string, logger *zap.Logger) *EventBus {
	return &EventBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    channel,
		stopChan:   make(chan struct{}),
	}
}

// InstanceID 이 프로세스의 고유 ID
func (b *EventBus) InstanceID() string {
	return b.instanceID
}

// Start 구독 루프. Stop 이나 ctx 취소까지 블록된다.
func (b *EventBus) Start(ctx context.Context, handler func(event Event) error) error {
	subCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelSub = cancel
	b.mu.Unlock()
	defer cancel()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	b.logger.Info("Event bus started",
		zap.String("instance_id", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			b.logger.Debug("Received event",
				zap.String("type", event.Type),
				zap.String("origin", event.Origin))

			if err := handler(event); err != nil {
				b.logger.Error("Failed to handle event",
					zap.String("type", event.Type),
					zap.Error(err))
			}

		case <-b.stopChan:
			b.logger.Info("Event bus stopped")
			return nil

		case <-subCtx.Done():
			return subCtx.Err()
		}
	}
}

// Stop 구독 중지
func (b *EventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.mu.Lock()
		if b.cancelSub != nil {
			b.cancelSub()
		}
		b.mu.Unlock()
	})
}

// Publish payload 를 JSON 으로 감싸 발행
func (b *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   raw,
		Origin:    b.instanceID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Published event",
		zap.String("type", eventType),
		zap.String("channel", b.channel))

	return nil
}
