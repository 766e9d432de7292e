package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

// Hub fans collected snapshots out to websocket subscribers. A subscriber may
// narrow the feed with ?indicator=<code>.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	indicator string
}

// NewHub creates a hub. pingInterval <= 0 uses 30s.
func NewHub(l *logger.Logger, pingInterval time.Duration) *Hub {
	if pingInterval <= 0 || pingInterval >= pongWait {
		pingInterval = 30 * time.Second
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		log:          l.With(logger.String("component", "ws_hub")),
		clients:      make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/snapshots", h.Serve)
}

// Serve upgrades the request and streams snapshots until the peer goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		indicator: c.QueryParam("indicator"),
	}
	h.add(cl)

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Broadcast implements repository.Broadcaster. Slow subscribers drop frames.
func (h *Hub) Broadcast(s *models.IndicatorSnapshot) {
	if s == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		h.log.Error("encode snapshot failed", logger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.indicator != "" && cl.indicator != s.Indicator {
			continue
		}
		select {
		case cl.send <- b:
		default:
			h.log.Debug("dropping frame for slow subscriber")
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// readLoop only services control frames; subscribers never send data.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.remove(cl)
		_ = cl.conn.Close()
	}()
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case b, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
