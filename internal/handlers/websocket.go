package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	engine *services.Engine
	hub    *WebSocketHub
}

// WebSocketHub fans engine events out to the connections of each user.
// It implements services.Broadcaster; sends never block the engine.
type WebSocketHub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
}

type Message struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

func NewWebSocketHub() *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}

	go hub.run()

	return hub
}

func NewWebSocketHandler(engine *services.Engine, hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
		hub:    hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendProfile(client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.send(&Message{
			Type:   "PONG",
			UserID: client.UserID,
			Data:   gin.H{"timestamp": time.Now().Unix()},
		})
	case "REFRESH":
		h.sendProfile(client)
	}
}

func (h *WebSocketHandler) sendProfile(client *Client) {
	profile, err := h.engine.Profile(client.UserID)
	if err != nil {
		log.Printf("Failed to load profile for WS: %v", err)
		return
	}

	h.hub.send(&Message{
		Type:   "STATE_UPDATE",
		UserID: client.UserID,
		Data:   gin.H{"reason": "connect", "profile": profile},
	})
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			if hub.clients[client.UserID] == nil {
				hub.clients[client.UserID] = make(map[*Client]bool)
			}
			hub.clients[client.UserID][client] = true
			log.Printf("Client registered: %s", client.UserID)

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				delete(conns, client)
				if len(conns) == 0 {
					delete(hub.clients, client.UserID)
				}
				log.Printf("Client unregistered: %s", client.UserID)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for client := range hub.clients[message.UserID] {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(message); err != nil {
			log.Printf("WebSocket write to %s failed: %v", message.UserID, err)
		}
	}
}

// send queues a message, dropping it when the hub is backed up.
func (hub *WebSocketHub) send(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		log.Printf("WebSocket hub backlog full, dropping %s for %s", msg.Type, msg.UserID)
	}
}

func (hub *WebSocketHub) BroadcastStateUpdate(userID, reason string) {
	hub.send(&Message{
		Type:   "STATE_UPDATE",
		UserID: userID,
		Data: gin.H{
			"reason":    reason,
			"timestamp": time.Now().UnixMilli(),
		},
	})
}

func (hub *WebSocketHub) BroadcastNotification(userID string, n models.Notification) {
	hub.send(&Message{
		Type:   "NOTIFICATION",
		UserID: userID,
		Data:   n,
	})
}
