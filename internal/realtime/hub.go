package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/metrics"
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("realtime hub is closed")

const maxReadBytes = 4096

type client struct {
	conn *websocket.Conn
	// gorilla connections support one concurrent writer.
	mu sync.Mutex
}

func (c *client) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub holds the websocket clients of this instance grouped by company.
type Hub struct {
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
	closed  bool
}

func NewHub(logger *zap.Logger, writeTimeout time.Duration) *Hub {
	return &Hub{
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the CORS middleware and the identity proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Publish delivers event to the local clients of companyID.
func (h *Hub) Publish(_ context.Context, companyID uuid.UUID, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.Deliver(companyID, data)
	metrics.RealtimeEventsTotal.WithLabelValues(string(event.Type), "delivered").Inc()
	return nil
}

// Deliver writes an encoded event to every local client of companyID. Clients that fail the
// write are closed and dropped.
func (h *Hub) Deliver(companyID uuid.UUID, data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[companyID]))
	for c := range h.clients[companyID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data, h.writeTimeout); err != nil {
			h.logger.Debug("Dropping websocket client",
				zap.String("company_id", companyID.String()),
				zap.Error(err))
			h.remove(companyID, c)
		}
	}
}

// Serve upgrades the request and blocks until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{conn: conn}
	if !h.add(companyID, c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return ErrHubClosed
	}
	defer h.remove(companyID, c)

	h.logger.Debug("Websocket client connected", zap.String("company_id", companyID.String()))

	// Inbound frames are ignored; reading keeps ping/pong and close handling alive.
	conn.SetReadLimit(maxReadBytes)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return nil
		}
	}
}

// Count returns the number of local clients of companyID.
func (h *Hub) Count(companyID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[companyID])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := h.clients
	h.clients = make(map[uuid.UUID]map[*client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.mu.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			_ = c.conn.Close()
			c.mu.Unlock()
			metrics.RealtimeConnections.Dec()
		}
	}
}

func (h *Hub) add(companyID uuid.UUID, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	set, ok := h.clients[companyID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[companyID] = set
	}
	set[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
	return true
}

func (h *Hub) remove(companyID uuid.UUID, c *client) {
	h.mu.Lock()
	set := h.clients[companyID]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, companyID)
		}
	}
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
		metrics.RealtimeConnections.Dec()
	}
}
