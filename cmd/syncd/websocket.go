// Package main provides the WebSocket surface for real-time sync events.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/batman3101/equipment-sync/internal/events"
	"github.com/batman3101/equipment-sync/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local dashboard only
		return r.Host == "localhost" || r.Host == "localhost:"+defaultPort
	},
}

// WSClient represents one dashboard connection.
type WSClient struct {
	id            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *WSHub
	mu            sync.Mutex
	subscriptions map[string]bool // empty = receive everything
}

// WSHub maintains active client connections and fans out sync events.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

type wsMessage struct {
	eventType string
	payload   []byte
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"` // epoch ms
}

// NewWSHub creates a hub and starts its dispatch loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("WebSocket client connected",
				map[string]interface{}{"client_id": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("WebSocket client disconnected",
				map[string]interface{}{"client_id": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.wants(msg.eventType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer, drop the connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans out one event to all subscribed clients.
func (h *WSHub) Broadcast(eventType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal WebSocket event", err,
			map[string]interface{}{"type": eventType})
		return
	}
	h.broadcast <- wsMessage{eventType: eventType, payload: payload}
}

// BindBus forwards every sync-core event onto the hub. Returns an
// unbind function releasing the subscriptions.
func BindBus(hub *WSHub, bus *events.Bus) func() {
	types := []events.EventType{
		events.EventSyncStarted,
		events.EventSyncProgress,
		events.EventSyncItemFailed,
		events.EventSyncCompleted,
		events.EventNetworkOnline,
		events.EventNetworkOffline,
	}
	unsubs := make([]func(), 0, len(types))
	for _, et := range types {
		eventType := string(et)
		unsubs = append(unsubs, bus.Subscribe(et, func(e events.Event) {
			hub.Broadcast(eventType, e.Data)
		}))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// wants reports whether the client should receive this event type.
// Clients that never subscribed explicitly receive everything.
func (c *WSClient) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[eventType]
}

// readPump consumes client messages: subscribe, unsubscribe and ping.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read error",
					map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		action, ok := msg["action"].(string)
		if !ok {
			continue
		}

		switch action {
		case "subscribe":
			if names, ok := msg["events"].([]interface{}); ok {
				c.mu.Lock()
				for _, n := range names {
					if name, ok := n.(string); ok {
						c.subscriptions[name] = true
					}
				}
				c.mu.Unlock()
				c.sendAck("subscribe_ack", names)
			}

		case "unsubscribe":
			if names, ok := msg["events"].([]interface{}); ok {
				c.mu.Lock()
				for _, n := range names {
					if name, ok := n.(string); ok {
						delete(c.subscriptions, name)
					}
				}
				c.mu.Unlock()
			}

		case "ping":
			c.sendPong()
		}
	}
}

// writePump flushes outbound messages and keeps the connection alive.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) sendAck(action string, names []interface{}) {
	payload, _ := json.Marshal(map[string]interface{}{
		"action":     action,
		"subscribed": names,
		"timestamp":  time.Now().UnixMilli(),
	})
	c.send <- payload
}

func (c *WSClient) sendPong() {
	payload, _ := json.Marshal(map[string]interface{}{
		"action":    "pong",
		"timestamp": time.Now().UnixMilli(),
	})
	c.send <- payload
}

// HandleWebSocket upgrades a connection and registers it with the hub.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("WebSocket upgrade failed",
				map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            time.Now().Format("20060102150405.000") + "-" + r.RemoteAddr,
			conn:          conn,
			send:          make(chan []byte, 256),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
