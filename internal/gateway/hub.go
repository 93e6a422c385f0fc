// Package gateway fans backtest lifecycle events out to WebSocket clients:
// run started, trade closed, daily halt, run completed, risk alert. Clients
// are passive listeners; slow ones drop events rather than stall the hub.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quantlab/internal/metrics"
)

// Event types published by the hub.
const (
	EventRunStarted   = "run_started"
	EventTradeClosed  = "trade_closed"
	EventDailyHalt    = "daily_halt"
	EventRunCompleted = "run_completed"
	EventRiskAlert    = "risk_alert"
)

// recentEvents is how many envelopes a freshly connected client receives.
const recentEvents = 64

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and event fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	recent  [][]byte // last N envelopes, oldest first
	metrics *metrics.Metrics // optional
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		metrics: m,
	}
}

// Publish wraps the payload in an envelope and fans it out. A client whose
// send queue is full misses the event; the drop is counted, never blocked on.
func (h *Hub) Publish(eventType string, payload interface{}) {
	envelope, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
		"data": payload,
	})
	if err != nil {
		log.Printf("[gateway] marshal %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	h.recent = append(h.recent, envelope)
	if len(h.recent) > recentEvents {
		h.recent = h.recent[len(h.recent)-recentEvents:]
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			if h.metrics != nil {
				h.metrics.WSEventsDropped.Inc()
			}
		}
	}
}

// ServeWS upgrades the HTTP connection and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	replay := make([][]byte, len(h.recent))
	copy(replay, h.recent)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendRecent(replay)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
