package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	cameraID string // optional filter
}

// Hub maintains active WebSocket clients and broadcasts created events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "filter", client.cameraID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.WSConnections.Dec()
			slog.Debug("ws client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// If client has a camera filter, check it
				if client.cameraID != "" {
					var evt dto.WSEvent
					if err := json.Unmarshal(message, &evt); err == nil {
						if evt.CameraID.String() != client.cameraID {
							continue
						}
					}
				}

				select {
				case client.send <- message:
				default:
					// Client buffer full, disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent sends a created event to all connected clients.
func (h *Hub) BroadcastEvent(ev *models.Event) {
	msg := dto.WSEvent{
		Type:     "event_created",
		CameraID: ev.CameraID,
		Data: dto.EventResponse{
			ID:              ev.ID,
			CameraID:        ev.CameraID,
			Timestamp:       ev.Timestamp.Format(time.RFC3339),
			Description:     ev.Description,
			Confidence:      ev.Confidence,
			Objects:         ev.Objects,
			AnalysisMode:    string(ev.Mode),
			FrameCountUsed:  ev.FrameCountUsed,
			FallbackReason:  ev.FallbackReason,
			Provider:        ev.Provider,
			MatchedEntityID: ev.MatchedEntityID,
			MatchScore:      ev.MatchScore,
			CreatedAt:       ev.CreatedAt.Format(time.RFC3339),
		},
	}
	if ev.SnapshotKey != "" {
		msg.Data.SnapshotURL = "/v1/events/" + ev.ID.String() + "/snapshot"
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}
	h.broadcast <- data
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	cameraFilter := c.Query("camera_id")

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, 64),
		cameraID: cameraFilter,
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// We don't process incoming messages from clients.
		// This loop exists to detect disconnection.
	}
}
