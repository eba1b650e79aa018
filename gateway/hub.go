package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/pose"
	"github.com/smilesmith9879/new-car/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendQueueDepth = 32
)

// wsMessage is one queued outbound message.
type wsMessage struct {
	messageType int
	data        []byte
}

// envelope wraps JSON pushes with type discrimination. Frames go out as
// binary messages without an envelope.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// client is one connected WebSocket peer. Each client gets a writer
// goroutine; a slow client drops messages rather than stalling the hub.
type client struct {
	id   string
	conn *websocket.Conn
	send chan wsMessage
	done chan struct{}
	once sync.Once
}

// Hub fans telemetry out to WebSocket clients. It implements
// telemetry.Sink so the broadcaster can treat it like any other sink.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *serverMetrics

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

var _ telemetry.Sink = (*Hub)(nil)

func newHub(logger *slog.Logger, metrics *serverMetrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		clients: make(map[string]*client),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the connection and registers the client.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan wsMessage, sendQueueDepth),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.setClients(count)
	h.logger.Info("websocket client connected", "client_id", c.id, "clients", count)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains inbound frames so pongs and close frames are processed.
func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with periodic pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.removeClient(c)

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
			h.metrics.wsSent()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) removeClient(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		count := len(h.clients)
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
		h.metrics.setClients(count)
		h.logger.Info("websocket client disconnected", "client_id", c.id, "clients", count)
	})
}

// broadcast queues a message for every connected client. Clients whose
// queue is full skip this message.
func (h *Hub) broadcast(messageType int, data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	msg := wsMessage{messageType: messageType, data: data}
	for _, c := range targets {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			h.metrics.wsDropped()
		}
	}
}

// Close disconnects all clients. New connections are refused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.removeClient(c)
	}
}

// PublishPose pushes a pose event to all clients.
func (h *Hub) PublishPose(_ context.Context, p pose.Pose) error {
	return h.pushJSON("pose", telemetry.PoseEvent{Pose: p, Timestamp: time.Now()})
}

// PublishBattery pushes a battery event to all clients.
func (h *Hub) PublishBattery(_ context.Context, t hardware.BatteryTelemetry) error {
	return h.pushJSON("battery", telemetry.BatteryEvent{Battery: t, Timestamp: time.Now()})
}

// PublishFrame pushes a camera frame as a binary message.
func (h *Hub) PublishFrame(_ context.Context, f camera.Frame) error {
	h.broadcast(websocket.BinaryMessage, f.Bytes)
	return nil
}

func (h *Hub) pushJSON(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapIOFailure(err, "gateway", "pushJSON", "serialize payload")
	}
	data, err := json.Marshal(envelope{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	})
	if err != nil {
		return errors.WrapIOFailure(err, "gateway", "pushJSON", "serialize envelope")
	}
	h.broadcast(websocket.TextMessage, data)
	return nil
}
