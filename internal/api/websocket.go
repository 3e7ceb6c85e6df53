package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The listener is loopback-only; origin checks add nothing here
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
}

// WebSocketClient represents a connected monitor
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager() *WSManager {
	return &WSManager{
		clients:    make(map[*WebSocketClient]bool),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
	}
}

func (m *WSManager) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			count := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: monitor connected from %s (%d total)", client.ip, count)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			count := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: monitor disconnected from %s (%d total)", client.ip, count)

		case <-ctx.Done():
			return
		}
	}
}

// broadcastMessage fans one message out to every connected monitor.
// A client that cannot keep up is dropped rather than allowed to stall
// the event path.
func (m *WSManager) broadcastMessage(message Message) {
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
			close(client.send)
			delete(m.clients, client)
		}
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

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// detach hands a client back to the hub, or gives up once the hub has
// shut down so pump goroutines never block on a dead hub.
func (m *WSManager) detach(c *WebSocketClient) {
	select {
	case m.unregister <- c:
	case <-m.done:
	}
}

// readPump drains the connection so pings and close frames are
// processed; monitors only listen, inbound payloads are discarded.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps broadcast messages to one connection.
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
