package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/model"
)

// Client is one WebSocket subscriber watching a file's operations.
type Client struct {
	FileID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans processing status events out to WebSocket subscribers, grouped by
// file id. Workers run in separate processes, so events arrive through the
// Redis relay rather than direct calls.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	log *logrus.Logger
	mu  sync.RWMutex
}

type broadcastMessage struct {
	FileID  string
	Message []byte
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		log:        log,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.FileID] == nil {
				h.clients[client.FileID] = make(map[*Client]bool)
			}
			h.clients[client.FileID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.FileID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.FileID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.FileID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent delivers a status event to every subscriber of its file.
func (h *Hub) BroadcastEvent(fileID string, event *model.StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("marshal status event")
		return
	}
	h.broadcast <- &broadcastMessage{FileID: fileID, Message: data}
}

// HandleConnection serves one subscriber until its connection drops.
func (h *Hub) HandleConnection(c *websocket.Conn, fileID string) {
	client := &Client{
		FileID: fileID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Debug("websocket closed")
			}
			break
		}
	}
}
