package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	// clientBuffer is how many status messages may queue per client before
	// new ones are dropped for it.
	clientBuffer = 16

	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Hub holds the latest session status and frame, and fans status updates
// out to WebSocket clients. It implements app.Publisher.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	status  app.Status
	hasData bool
	frame   []byte
	frameID uint64
	clients map[*websocket.Conn]chan []byte

	// viewers counts MJPEG clients; frames are only encoded while non-zero.
	viewers atomic.Int32
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		logger:  logger.OrNop(log),
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Publish stores s as the latest status and sends it to every client.
// Slow clients miss updates rather than stall the caller.
func (h *Hub) Publish(s app.Status) {
	msg, err := json.Marshal(s)
	if err != nil {
		h.logger.Warn("failed to encode status", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = s
	h.hasData = true
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// PublishFrame JPEG-encodes frame for stream viewers. It is a no-op while
// nobody is watching.
func (h *Hub) PublishFrame(frame gocv.Mat) {
	if h.viewers.Load() == 0 || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		h.logger.Debug("failed to encode frame", zap.Error(err))
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.mu.Lock()
	h.frame = data
	h.frameID++
	h.mu.Unlock()
}

// Status returns the latest status and whether any has been published.
func (h *Hub) Status() (app.Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status, h.hasData
}

// Frame returns the latest encoded frame and its sequence number.
func (h *Hub) Frame() ([]byte, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame, h.frameID
}

// Clients returns the number of connected WebSocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket and streams status updates
// until the client disconnects. The latest status is sent on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	if h.hasData {
		if msg, err := json.Marshal(h.status); err == nil {
			ch <- msg
		}
	}
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reading detects disconnects; clients never send anything useful.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
