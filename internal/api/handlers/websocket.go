package handlers

import (
	"net/http"

	"github.com/576576/hadesstar-bot/internal/websocket"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler 발차/타임아웃 알림 구독
type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket 업그레이드 후 hub 에 등록. 같은 플레이어의 이전 연결은 교체된다.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	if !h.hub.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications unavailable"})
		return
	}
	websocket.ServeWs(h.hub, c.Writer, c.Request, callerID(c))
}

// Status 호출한 플레이어의 알림 연결 여부
func (h *WebSocketHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected": h.hub.Connected(callerID(c)),
		"total":     h.hub.ConnectedCount(),
	})
}
