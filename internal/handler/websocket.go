package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/connectwithme/relay/internal/config"
	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/metrics"
	"github.com/connectwithme/relay/internal/relay"
)

// WebSocketHandler upgrades HTTP requests and runs the per-connection pumps.
type WebSocketHandler struct {
	config   *config.Config
	service  *relay.Service
	metrics  metrics.Collector
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cfg *config.Config, svc *relay.Service, m metrics.Collector) *WebSocketHandler {
	// Configure WebSocket upgrader
	upgrader := websocket.Upgrader{
		ReadBufferSize:    cfg.WebSocket.BufferSize,
		WriteBufferSize:   cfg.WebSocket.BufferSize,
		EnableCompression: cfg.WebSocket.EnableCompression,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			if !cfg.HTTP.EnableCORS {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			// Allow all origins if configured
			if len(cfg.HTTP.AllowedOrigins) == 1 && cfg.HTTP.AllowedOrigins[0] == "*" {
				return true
			}

			// Check against allowed origins
			for _, allowed := range cfg.HTTP.AllowedOrigins {
				if allowed == origin {
					return true
				}
			}

			return false
		},
	}

	return &WebSocketHandler{
		config:   cfg,
		service:  svc,
		metrics:  m,
		upgrader: upgrader,
	}
}

// ServeHTTP handles HTTP requests for WebSocket connections
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		h.metrics.ConnectionError("upgrade_failed")
		return
	}

	client := hub.NewClient(conn, h.config.WebSocket.SendQueueSize)
	h.service.Connect(client)

	// Set connection parameters
	conn.SetReadLimit(h.config.WebSocket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
		return nil
	})

	// Start goroutines for reading and writing
	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

// readPump pumps messages from the WebSocket connection to the relay. Its
// exit is the single cleanup path: presence and channel memberships are
// released here exactly once, whether the peer closed cleanly or vanished.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.service.Disconnect(client)
		conn.Close()
	}()

	for {
		// Read message
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
				h.metrics.ConnectionError("unexpected_close")
			}
			break
		}

		// Handle message; a returned error means the connection must go
		if err := h.service.HandleEvent(client, message); err != nil {
			log.Printf("Closing connection %s: %v", client.ID, err)
			break
		}
	}
}

// writePump pumps frames from the client's send queue to the WebSocket
// connection and keeps the transport alive with pings.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(h.config.WebSocket.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if !ok {
				// Channel was closed
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
