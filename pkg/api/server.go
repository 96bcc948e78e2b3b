// Package api serves the management endpoints: runtime stats over HTTP
// and a websocket feed pushing stats and log lines to the frontend.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"streamtor/pkg/cache"
	"streamtor/pkg/config"
	"streamtor/pkg/logger"
	"streamtor/pkg/resolver"
)

// Server handles API requests
type Server struct {
	config  *config.Config
	store   *cache.Store
	service *resolver.Service
	version string

	// WebSocket client registry
	clients   map[*Client]bool
	clientsMu sync.Mutex
	logCh     chan string
}

type Client struct {
	conn *websocket.Conn
	send chan WSMessage
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store *cache.Store, service *resolver.Service, version string) *Server {
	s := &Server{
		config:  cfg,
		store:   store,
		service: service,
		version: version,
		clients: make(map[*Client]bool),
		logCh:   make(chan string, 100),
	}

	// Start log broadcaster
	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()

	return s
}

// Routes returns the handler for everything under /api/.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return mux
}

func (s *Server) broadcastLogs() {
	for msgStr := range s.logCh {
		msg := WSMessage{Type: "log_entry", Payload: json.RawMessage(fmt.Sprintf("%q", msgStr))}

		s.clientsMu.Lock()
		for client := range s.clients {
			select {
			case client.send <- msg:
			default:
				// Slow client; drop the line rather than block the feed.
			}
		}
		s.clientsMu.Unlock()
	}
}

func (s *Server) AddClient(c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c] = true
}

func (s *Server) RemoveClient(c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
}
