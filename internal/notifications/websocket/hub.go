// Package websocket delivers lifecycle events to connected browsers. The
// hub is one subscriber on the notification bus; the lifecycle core never
// sees a live connection.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/notifications"
)

// Connection represents one member's open socket.
type Connection struct {
	ID        string
	MemberID  string
	SectionID string
	IsAdmin   bool
	conn      *websocket.Conn
	send      chan notifications.Event
}

// Hub manages socket connections and routes events to them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	broadcast   chan notifications.Event
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewHub creates a hub and starts its routing loop.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		connections: make(map[string]*Connection),
		broadcast:   make(chan notifications.Event, 256),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is handled by the CORS layer in front.
				return true
			},
		},
	}
	go h.run()
	return h
}

// Name implements notifications.Subscriber.
func (h *Hub) Name() string { return "websocket" }

// Deliver implements notifications.Subscriber by queueing the event for
// the routing loop.
func (h *Hub) Deliver(ctx context.Context, event notifications.Event) error {
	select {
	case h.broadcast <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleConnection upgrades the request and registers the member's socket.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, memberID, sectionID string, isAdmin bool) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		SectionID: sectionID,
		IsAdmin:   isAdmin,
		conn:      conn,
		send:      make(chan notifications.Event, 64),
	}

	h.mu.Lock()
	h.connections[connection.ID] = connection
	h.mu.Unlock()

	go h.readPump(connection)
	go h.writePump(connection)
	return nil
}

func (h *Hub) run() {
	for event := range h.broadcast {
		h.mu.RLock()
		for _, conn := range h.connections {
			if !h.shouldReceive(conn, event) {
				continue
			}
			select {
			case conn.send <- event:
			default:
				// Slow consumer; drop the event rather than block routing.
				h.logger.Warn("dropping event for slow websocket consumer",
					zap.String("connection_id", conn.ID),
					zap.String("event_type", string(event.Type)))
			}
		}
		h.mu.RUnlock()
	}
}

// shouldReceive scopes events to the member they concern, their section
// peers, and admins.
func (h *Hub) shouldReceive(conn *Connection, event notifications.Event) bool {
	if conn.IsAdmin {
		return true
	}
	if !event.RecipientID.IsZero() && event.RecipientID.Hex() == conn.MemberID {
		return true
	}
	if !event.SectionID.IsZero() && event.SectionID.Hex() == conn.SectionID {
		return true
	}
	return false
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		close(conn.send)
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(conn *Connection) {
	defer func() {
		h.unregister(conn)
		conn.conn.Close()
	}()

	conn.conn.SetReadLimit(512)
	conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *Connection) {
	ticker := time.NewTicker(45 * time.Second)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConnectionCount returns the number of open sockets.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
