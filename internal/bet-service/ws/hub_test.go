package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readMsg(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, c.ReadJSON(v))
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, func(_ *http.Request, betID string) bool { return betID != "not-mine" })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", BetID: "bet-1"}))
	var ack serverMsg
	readMsg(t, c, &ack)
	assert.Equal(t, serverMsg{Type: "subscribed", BetID: "bet-1"}, ack)
	assert.Equal(t, 1, hub.Subscribers("bet-1"))

	hub.Broadcast(events.BetStatusUpdate{BetID: "other", Status: "approved"})
	hub.Broadcast(events.BetStatusUpdate{BetID: "bet-1", Status: "approved"})

	var upd events.BetStatusUpdate
	readMsg(t, c, &upd)
	assert.Equal(t, "bet-1", upd.BetID)
	assert.Equal(t, "approved", upd.Status)
}

func TestHub_ForbiddenSubscription(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, func(_ *http.Request, betID string) bool { return betID != "not-mine" })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", BetID: "not-mine"}))

	var msg serverMsg
	readMsg(t, c, &msg)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, 0, hub.Subscribers("not-mine"))
}

func TestHub_PingAndDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", BetID: "bet-2"}))
	var ack serverMsg
	readMsg(t, c, &ack)

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	var pong serverMsg
	readMsg(t, c, &pong)
	assert.Equal(t, "pong", pong.Type)

	_ = c.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("bet-2") == 0 }, 2*time.Second, 20*time.Millisecond)
}
