package ws

import (
	"net/http"
	"sync"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/gorilla/websocket"
)

// Client serializes writes to one connection; gorilla allows a single writer.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *logger.ZapLogger
}

func NewHub(log *logger.ZapLogger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log,
	}
}

func (h *Hub) Register(roomID string, conn *websocket.Conn) *Client {
	c := &Client{conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[hub] register",
		Fields:  map[string]any{"room": roomID, "conns": len(h.rooms[roomID])},
	})
	return c
}

func (h *Hub) Unregister(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := conns[c]; ok {
		delete(conns, c)
		_ = c.conn.Close()
	}
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[hub] unregister",
		Fields:  map[string]any{"room": roomID, "conns": len(conns)},
	})
}

func (h *Hub) SendToRoom(roomID string, msg []byte) {
	h.send(h.clients(roomID), msg)
}

// Broadcast delivers msg to every room.
func (h *Hub) Broadcast(msg []byte) {
	h.send(h.clients(""), msg)
}

// clients snapshots the room, or all rooms when roomID is empty.
func (h *Hub) clients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for id, conns := range h.rooms {
		if roomID != "" && id != roomID {
			continue
		}
		for c := range conns {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) send(clients []*Client, msg []byte) {
	if len(clients) == 0 {
		h.log.Log(logger.LogEntry{
			Level:   "debug",
			Message: "[hub][SEND-SKIP] no active connections",
		})
		return
	}
	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			h.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "[hub][SEND-ERR]",
				Error:   err,
			})
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.rooms {
		n += len(conns)
	}
	return n
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
