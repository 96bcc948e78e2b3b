package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"streamtor/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan WSMessage, 256)}
	s.AddClient(client)

	defer func() {
		s.RemoveClient(client)
		conn.Close()
	}()

	logger.Debug("ws client connected", "remote", r.RemoteAddr)

	// Push current state immediately so the frontend renders without
	// waiting for the first tick.
	go func() {
		s.sendStats(client)
		s.sendConfig(client)
		s.sendLogHistory(client)
	}()

	// Read loop (client -> server)
	go func() {
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("ws read error", "error", err)
				}
				conn.Close()
				return
			}

			switch msg.Type {
			case "get_stats":
				s.sendStats(client)
			case "get_config":
				s.sendConfig(client)
			case "get_log_history":
				s.sendLogHistory(client)
			}
		}
	}()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// Write loop (server -> client)
	for {
		select {
		case <-ticker.C:
			s.sendStats(client)
		case msg, ok := <-client.send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStats(client *Client) {
	payload, _ := json.Marshal(s.collectStats())
	select {
	case client.send <- WSMessage{Type: "stats", Payload: payload}:
	default:
	}
}

func (s *Server) sendConfig(client *Client) {
	payload, _ := json.Marshal(s.config)
	select {
	case client.send <- WSMessage{Type: "config", Payload: payload}:
	default:
	}
}

func (s *Server) sendLogHistory(client *Client) {
	payload, _ := json.Marshal(logger.GetHistory())
	select {
	case client.send <- WSMessage{Type: "log_history", Payload: payload}:
	default:
	}
}
