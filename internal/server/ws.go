package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/photomesh/internal/capture"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// client is one websocket peer. send is drained by a writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// FacesHandler pushes the face regions of every tick to websocket clients.
// A client that falls behind misses ticks rather than stalling the loop.
type FacesHandler struct {
	mu          sync.RWMutex
	clients     map[*client]struct{}
	closed      bool
	unsubscribe func()
}

// NewFacesHandler creates a FacesHandler fed by frames.
func NewFacesHandler(frames FrameSource) *FacesHandler {
	h := &FacesHandler{clients: make(map[*client]struct{})}
	h.unsubscribe = frames.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *FacesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}

	go h.writePump(c)

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (h *FacesHandler) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *FacesHandler) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *FacesHandler) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug("WebSocket write failed", "err", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// broadcast fans one tick out to all clients without blocking.
func (h *FacesHandler) broadcast(result capture.TickResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(result)
	if err != nil {
		log.Error("Failed to encode tick", "err", err)
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *FacesHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops listening to the frame source and disconnects every client.
func (h *FacesHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.unsubscribe()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
