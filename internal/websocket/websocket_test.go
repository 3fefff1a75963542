package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := websocket.NewClient("c1", "u-1", hub, nil, nil)
	b := websocket.NewClient("c2", "u-2", hub, nil, nil)
	hub.Register <- a
	hub.Register <- b

	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, hub.HasUser("u-1"))

	assert.Equal(t, 1, hub.BroadcastToUser("u-1", []byte("hello")))
	assert.Equal(t, "hello", string(<-a.Send))
	assert.Equal(t, 0, hub.BroadcastToUser("nobody", []byte("x")))
	assert.Len(t, b.Send, 0)

	hub.Unregister <- a
	require.Eventually(t, func() bool { return !hub.HasUser("u-1") }, time.Second, 5*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := websocket.NewClient("c1", "u-1", hub, nil, nil)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.HasUser("u-1") }, time.Second, 5*time.Millisecond)

	for i := 0; i < cap(c.Send); i++ {
		require.Equal(t, 1, hub.BroadcastToUser("u-1", []byte("m")))
	}
	assert.Equal(t, 0, hub.BroadcastToUser("u-1", []byte("overflow")))
	assert.False(t, hub.HasUser("u-1"))
}

func TestWebSocketHandler_DeliversToUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", auth.TrustedHeaderMiddleware(), websocket.WebSocketHandler(hub, nil, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	header := http.Header{}
	header.Set("X-User-ID", "u-9")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.HasUser("u-9") }, time.Second, 5*time.Millisecond)
	hub.BroadcastToUser("u-9", []byte(`{"message":"assigned"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"assigned"}`, string(msg))
}

func TestWebSocketHandler_RequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", websocket.WebSocketHandler(websocket.NewHub(), nil, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
