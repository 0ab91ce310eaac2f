package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/strikegate/internal/contracts"
	"github.com/wonny/strikegate/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 16
	broadcastQueue = 64
)

// DecisionEvent message pushed to stream clients
type DecisionEvent struct {
	RunID      string               `json:"run_id"`
	StrikeID   uint64               `json:"strike_id"`
	Symbol     string               `json:"symbol"`
	StrikeType contracts.StrikeType `json:"strike_type"`
	Decision   contracts.Decision   `json:"decision"`
	Confidence float64              `json:"final_confidence"`
	Risk       float64              `json:"final_risk"`
	PassRate   float64              `json:"pass_rate"`
	FinishedAt time.Time            `json:"finished_at"`
}

func eventOf(r *contracts.Report) DecisionEvent {
	return DecisionEvent{
		RunID:      r.RunID,
		StrikeID:   r.StrikeID,
		Symbol:     r.Symbol,
		StrikeType: r.StrikeType,
		Decision:   r.Decision,
		Confidence: r.FinalConfidence,
		Risk:       r.FinalRisk,
		PassRate:   r.PassRate,
		FinishedAt: r.FinishedAt,
	}
}

// Hub fans decisions out to websocket subscribers.
// Slow clients are dropped instead of blocking the broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	events  chan []byte

	onClients func(n int)
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a decision hub; onClients (optional) observes the client count
func NewHub(log *logger.Logger, onClients func(n int)) *Hub {
	if onClients == nil {
		onClients = func(int) {}
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:    log,
		clients:   make(map[*wsClient]struct{}),
		events:    make(chan []byte, broadcastQueue),
		onClients: onClients,
	}
}

// Run delivers queued events until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.events:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("Dropping slow decision stream client")
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a report; drops it when the queue is full
func (h *Hub) Broadcast(r *contracts.Report) {
	if r == nil {
		return
	}
	msg, err := json.Marshal(eventOf(r))
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode decision event")
		return
	}
	select {
	case h.events <- msg:
	default:
		h.logger.WithField("run_id", r.RunID).Warn("Decision stream queue full")
	}
}

// Clients connected subscriber count
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS GET /ws/decisions
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.onClients(len(h.clients))
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.onClients(len(h.clients))
}

// readPump drains control frames; the stream is server → client only
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WithError(err).Debug("Decision stream client closed")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
