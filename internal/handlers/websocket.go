package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"alive-keeper/internal/models"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHub pushes snapshots and notices to every connected UI. It
// implements services.Broadcaster and never blocks the caller: a client
// that cannot keep up is dropped.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directMessage
	logger     *slog.Logger
}

type directMessage struct {
	client *Client
	msg    *Message
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	send chan *Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	MessageSnapshot = "SNAPSHOT"
	MessageNotice   = "NOTICE"
	MessagePong     = "PONG"
)

func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	if logger == nil {
		logger = slog.Default()
	}
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		direct:     make(chan directMessage, 16),
		logger:     logger,
	}

	go hub.run()

	return hub
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			hub.logger.Debug("websocket client registered", "client", client.ID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
				hub.logger.Debug("websocket client unregistered", "client", client.ID)
			}

		case message := <-hub.broadcast:
			for client := range hub.clients {
				hub.deliver(client, message)
			}

		case d := <-hub.direct:
			if hub.clients[d.client] {
				hub.deliver(d.client, d.msg)
			}
		}
	}
}

func (hub *WebSocketHub) deliver(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		delete(hub.clients, client)
		close(client.send)
		hub.logger.Warn("dropping slow websocket client", "client", client.ID)
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		hub.logger.Warn("websocket broadcast queue full, dropping message", "type", msg.Type)
	}
}

func (hub *WebSocketHub) BroadcastSnapshot(snap models.PlayerSnapshot) {
	hub.publish(&Message{Type: MessageSnapshot, Data: snap})
}

func (hub *WebSocketHub) BroadcastNotice(kind, message string) {
	hub.publish(&Message{
		Type: MessageNotice,
		Data: gin.H{
			"kind":      kind,
			"message":   message,
			"timestamp": time.Now().Unix(),
		},
	})
}

type WebSocketHandler struct {
	hub       *WebSocketHub
	store     SnapshotReader
	refresher Refresher
}

func NewWebSocketHandler(hub *WebSocketHub, store SnapshotReader, refresher Refresher) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		store:     store,
		refresher: refresher,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("failed to upgrade to websocket", "error", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		send: make(chan *Message, clientSendSize),
	}

	// Queue the current state before registering so it arrives first
	client.send <- &Message{Type: MessageSnapshot, Data: h.store.Snapshot()}
	h.hub.register <- client

	go client.writePump()

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.hub.logger.Warn("websocket error", "error", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		select {
		case h.hub.direct <- directMessage{client, &Message{Type: MessagePong, Data: gin.H{"timestamp": time.Now().Unix()}}}:
		default:
		}
	case "REFRESH":
		h.refresher.Trigger("refocus")
	}
}

func (c *Client) writePump() {
	for msg := range c.send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(msg); err != nil {
			c.Conn.Close()
			// Drain until the hub closes the channel
			for range c.send {
			}
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
