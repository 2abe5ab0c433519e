package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"inputshare/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

// WebSocketClient represents a connected API client
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string

	// closed is guarded by the manager's clientsMu
	closed bool
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	m.startOnce.Do(func() { go m.run() })
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) run() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: client registered from %s. Total clients: %d", client.ip, n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				m.dropLocked(client)
				log.Printf("WS: client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				m.dropLocked(client)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// Slow client; drop it rather than stall the hub.
			m.dropLocked(client)
		}
	}
}

func (m *WSManager) dropLocked(client *WebSocketClient) {
	delete(m.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

func (m *WSManager) broadcastStatus(status protocol.StatusPayload) {
	select {
	case m.broadcast <- protocol.Message{Type: protocol.TypeStatus, Payload: status}:
	case <-m.shutdown:
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	// Greet with the current status before joining the broadcast set.
	client.reply(protocol.Message{Type: protocol.TypeStatus, Payload: m.server.status()})

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
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

// reply queues msg for this client only.
func (c *WebSocketClient) reply(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.manager.clientsMu.Lock()
	defer c.manager.clientsMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *WebSocketClient) replyError(text string) {
	c.reply(protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorPayload{Message: text}})
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg struct {
		Type    protocol.MessageType `json:"type"`
		Payload json.RawMessage      `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: invalid message format: %v", err)
		c.replyError("invalid message")
		return
	}

	ctrl := c.manager.server.opts.Controller
	switch msg.Type {
	case protocol.TypeToggle:
		var payload protocol.TogglePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.replyError("invalid toggle payload")
				return
			}
		}
		log.Printf("WS: toggle request from %s (state=%q)", c.ip, payload.State)
		if err := ctrl.Toggle(payload.State); err != nil {
			c.replyError(err.Error())
		}

	case protocol.TypeExit:
		log.Printf("WS: exit requested from %s", c.ip)
		ctrl.RequestExit(nil)

	default:
		c.replyError("unknown message type " + string(msg.Type))
	}
}
