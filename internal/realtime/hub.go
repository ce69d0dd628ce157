package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client is one open notification socket. A user may hold several.
type Client struct {
	ID   string
	UID  int
	Role string
	Conn *WebSocketConn
	Send chan []byte
}

type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("marshal broadcast payload")
		return
	}
	h.broadcast <- b
}

// SendToUser delivers to every socket of uid. Full buffers are skipped.
func (h *Hub) SendToUser(uid int, data any) {
	h.sendWhere(data, func(c *Client) bool { return c.UID == uid })
}

func (h *Hub) SendToRole(role string, data any) {
	h.sendWhere(data, func(c *Client) bool { return c.Role == role })
}

func (h *Hub) sendWhere(data any, match func(*Client) bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.WithError(err).Error("marshal notification")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.log.WithField("client_id", client.ID).Warn("notification dropped, send buffer full")
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"client_id": client.ID, "uid": client.UID, "role": client.Role}).Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				h.log.WithField("client_id", client.ID).Debug("client unregistered")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}
