package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Message is an event broadcast to all connected clients
type Message struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Server is a broadcast hub for websocket clients. Slow clients are dropped
// rather than allowed to stall the broadcast path.
type Server struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a new websocket server
func NewServer(allowedOrigins []string, log *logger.Logger) *Server {
	return &Server{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		logger: log.Named("websocket"),
	}
}

// HandleConnection upgrades an HTTP request to a websocket client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket connection", logger.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("Websocket client connected",
		logger.String("remote_addr", r.RemoteAddr),
		logger.Int("clients", clientCount))

	go s.writeLoop(c)
	go s.readLoop(c)
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(message *Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal websocket message",
			logger.String("type", message.Type),
			logger.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			// Send buffer full; the write loop will notice the closed
			// channel and clean up
			s.logger.Warn("Dropping slow websocket client")
			go s.remove(c)
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects all clients
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		close(c.send)
		c.conn.Close()
		delete(s.clients, c)
	}
}

// writeLoop pushes broadcast messages to a single client
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.remove(c)
			return
		}
	}
}

// readLoop drains client frames so control messages are processed; any read
// error disconnects the client
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

// remove unregisters a client and closes its connection
func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	c.conn.Close()
}
