package websocket

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, hub.checkOrigin(req), "no allow list")

	hub.AllowOrigins([]string{"https://bot.example/", "HTTPS://Dash.example"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://bot.example", true},
		{"https://dash.example", true},
		{"https://evil.example", false},
		{"", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, hub.checkOrigin(req), tt.origin)
	}
}

func TestHub_ReplacedConnectionIsClosed(t *testing.T) {
	hub := newTestHub(t)
	first := attach(t, hub, "alice")
	second := &Client{hub: hub, send: make(chan *Message, 8), playerID: "alice"}
	hub.register <- second

	select {
	case _, ok := <-first.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("old connection still open")
	}
	assert.Equal(t, 1, hub.ConnectedCount())

	// 교체된 연결의 해제는 새 연결에 영향이 없다
	hub.unregister <- first
	hub.SendToPlayer("alice", MessageLaunch, "x")
	msg := receive(t, second)
	require.NotNil(t, msg)
	assert.True(t, hub.Connected("alice"))
}
