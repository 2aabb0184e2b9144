package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// 메시지 타입
const (
	MessageLaunch    = "launch"
	MessageEviction  = "eviction"
	MessageConnected = "connected"
	MessagePing      = "ping"
	MessagePong      = "pong"
)

// Hub 플레이어별 WebSocket 연결 관리
type Hub struct {
	// 플레이어별 연결 (playerID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	running atomic.Bool

	// 허용된 Origin (비어 있으면 전부 허용)
	origins map[string]struct{}

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	PlayerID string      `json:"-"` // 수신자 (빈 문자열이면 전체)
	Type     string      `json:"type"`
	Payload  interface{} `json:"payload"`
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run ctx 가 끝날 때까지 등록/해제/전송 처리
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기
	if oldClient, exists := h.clients[client.playerID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("playerId", client.playerID))
	}

	h.clients[client.playerID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("playerId", client.playerID),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 교체된 연결이면 이미 닫혀 있다
	if current, exists := h.clients[client.playerID]; exists && current == client {
		delete(h.clients, client.playerID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("playerId", client.playerID),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.PlayerID == "" {
		for _, client := range h.clients {
			select {
			case client.send <- message:
			default:
				// 채널이 가득 찬 경우 연결 해제
				h.logger.Warn("Client send channel full, unregistering",
					zap.String("playerId", client.playerID))
				go func(c *Client) {
					h.unregister <- c
				}(client)
			}
		}
		return
	}

	client, exists := h.clients[message.PlayerID]
	if !exists {
		h.logger.Debug("Player not connected, dropping message",
			zap.String("playerId", message.PlayerID),
			zap.String("type", message.Type))
		return
	}
	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send channel full",
			zap.String("playerId", message.PlayerID))
	}
}

// AllowOrigins 업그레이드를 허용할 Origin 목록. Run 전에 호출한다.
func (h *Hub) AllowOrigins(origins []string) {
	if len(origins) == 0 {
		h.origins = nil
		return
	}
	h.origins = make(map[string]struct{}, len(origins))
	for _, o := range origins {
		h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
}

// checkOrigin Origin 헤더가 없는 요청(봇, CLI)은 통과
func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.origins == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// Running Run 루프가 돌고 있는지. 멈춘 hub 에 등록하면 막힌다.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// ConnectedCount 현재 연결 수
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected 플레이어의 연결 여부
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

// SendToPlayer 특정 플레이어에게 전송
func (h *Hub) SendToPlayer(playerID string, msgType string, payload interface{}) {
	h.broadcast <- &Message{
		PlayerID: playerID,
		Type:     msgType,
		Payload:  payload,
	}
}

// Broadcast 연결된 모든 플레이어에게 전송
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	h.broadcast <- &Message{
		Type:    msgType,
		Payload: payload,
	}
}
