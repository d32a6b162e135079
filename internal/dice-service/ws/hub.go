package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client serializa as escritas de uma conexão; o gorilla aceita um escritor por vez
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, b)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas do feed de apostas
// subs: mapeia moeda (ou "*") para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode assinar várias moedas
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		key := topicKey(msg.Currency)
		switch msg.Type {
		case "subscribe":
			if key == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "error": "currency required"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[key]; !ok {
				h.subs[key] = make(map[*client]struct{})
			}
			h.subs[key][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.remove(key, c)
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for key, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) remove(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[key]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, key)
		}
	}
}

// Broadcast envia a aposta para quem assina a moeda e para quem assina "*"
func (h *Hub) Broadcast(update FeedUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[AllCurrencies]))
	for c := range h.subs[AllCurrencies] {
		targets = append(targets, c)
	}
	if key := topicKey(update.Currency); key != AllCurrencies {
		for c := range h.subs[key] {
			if _, dup := h.subs[AllCurrencies][c]; !dup {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
}

// Subscribers devolve quantos clientes assinam a moeda
func (h *Hub) Subscribers(currency string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topicKey(currency)])
}

func topicKey(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
