package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// inbound 클라이언트가 보내는 메시지. 지금은 {"type":"ping"} 만 처리한다.
type inbound struct {
	Type string `json:"type"`
}

// Client 플레이어 한 명의 WebSocket 연결
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan *Message
	playerID string
}

func newClient(hub *Hub, conn *websocket.Conn, playerID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *Message, sendBuffer),
		playerID: playerID,
	}
}

// enqueue 가득 차 있으면 버린다 (알림은 best-effort)
func (c *Client) enqueue(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump 연결 유지 확인과 애플리케이션 레벨 ping 응답
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket closed unexpectedly",
					zap.String("playerId", c.playerID),
					zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessagePing {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
			c.enqueue(&Message{Type: MessagePong, Payload: time.Now().UTC()})
		}
	}
}

// writePump send 채널을 JSON 프레임으로 내보내고 주기적으로 ping 을 보낸다
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debug("WebSocket write failed",
					zap.String("playerId", c.playerID),
					zap.String("type", msg.Type),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 연결을 업그레이드하고 허브에 등록한다
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, playerID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     hub.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("WebSocket upgrade failed",
			zap.String("playerId", playerID),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err))
		return
	}

	client := newClient(hub, conn, playerID)
	client.enqueue(&Message{Type: MessageConnected, Payload: map[string]string{"playerId": playerID}})
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
