package messaging

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const sendBuffer = 64

// conn is written to only by its writer goroutine. Publish hands payloads
// over through send and never waits on the network.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// enqueue reports false when the connection is closed or too far behind.
func (c *conn) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	write := func(messageType int, payload []byte) error {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		return c.ws.WriteMessage(messageType, payload)
	}
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub fans events out to every open connection of a user. A user may be
// connected from several tabs or devices at once.
type Hub struct {
	log   *logrus.Logger
	mu    sync.RWMutex
	conns map[string]map[*conn]struct{}
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{log: log, conns: make(map[string]map[*conn]struct{})}
}

// register adds c and reports whether it is the user's first connection.
func (h *Hub) register(userID string, c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	metrics.WSConnections.Inc()
	return len(set) == 1
}

// unregister removes c and reports whether the user has no connections left.
func (h *Hub) unregister(userID string, c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	metrics.WSConnections.Dec()
	if len(set) == 0 {
		delete(h.conns, userID)
		return true
	}
	return false
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Publish sends evt to all of userID's connections. Users who are offline
// simply miss it; they catch up through the REST endpoints.
func (h *Hub) Publish(userID string, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).WithField("type", evt.Type).Error("failed to encode ws event")
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": c.id}).Debug("dropping slow ws connection")
			c.close()
		}
	}
}

// serve runs one connection until the client goes away. onFirst and onLast
// fire when the user comes online and goes offline.
func (h *Hub) serve(userID string, ws *websocket.Conn, onFirst, onLast func()) {
	c := newConn(ws)
	clog := h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": c.id})
	clog.Debug("ws connected")

	go c.writePump()
	if h.register(userID, c) && onFirst != nil {
		onFirst()
	}
	defer func() {
		c.close()
		if h.unregister(userID, c) && onLast != nil {
			onLast()
		}
		clog.Debug("ws disconnected")
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Server push only; anything the client sends is discarded.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
