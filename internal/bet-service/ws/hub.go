package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

const writeTimeout = 2 * time.Second

// CanSubscribe decide se a requisição (já autenticada) pode acompanhar a aposta
type CanSubscribe func(r *http.Request, betID string) bool

// conn serializa escritas: gorilla não aceita writers concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por aposta
// subs: betID -> conjunto de conexões inscritas
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	allow    CanSubscribe
	mu       sync.RWMutex
	subs     map[string]map[*conn]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, allow CanSubscribe) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		allow:    allow,
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão
// Cada cliente pode acompanhar várias apostas
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer func() {
		h.drop(c)
		_ = ws.Close()
	}()

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.BetID == "" || (h.allow != nil && !h.allow(r, msg.BetID)) {
				_ = c.write(serverMsg{Type: "error", BetID: msg.BetID, Error: "forbidden"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.BetID]; !ok {
				h.subs[msg.BetID] = make(map[*conn]struct{})
			}
			h.subs[msg.BetID][c] = struct{}{}
			h.mu.Unlock()
			_ = c.write(serverMsg{Type: "subscribed", BetID: msg.BetID})
		case "unsubscribe":
			h.mu.Lock()
			h.unsubscribeLocked(msg.BetID, c)
			h.mu.Unlock()
		case "ping":
			_ = c.write(serverMsg{Type: "pong"})
		}
	}
}

func (h *Hub) unsubscribeLocked(betID string, c *conn) {
	if m, ok := h.subs[betID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, betID)
		}
	}
}

// drop remove a conexão de todas as assinaturas ao desconectar
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for betID := range h.subs {
		h.unsubscribeLocked(betID, c)
	}
}

// Broadcast envia a mudança de status para quem acompanha a aposta
func (h *Hub) Broadcast(update events.BetStatusUpdate) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.subs[update.BetID]))
	for c := range h.subs[update.BetID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(update); err != nil {
			h.log.Debug("ws write failed", zap.String("bet_id", update.BetID), zap.Error(err))
		}
	}
}

// Subscribers é usado em métricas/testes
func (h *Hub) Subscribers(betID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[betID])
}

func decodeUpdate(payload string) (events.BetStatusUpdate, error) {
	var upd events.BetStatusUpdate
	err := json.Unmarshal([]byte(payload), &upd)
	return upd, err
}
