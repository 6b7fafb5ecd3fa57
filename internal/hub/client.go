package hub

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents one realtime transport session. UserID is empty until the
// connection completes its setup handshake.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	// closed is flipped by Hub.Remove under the hub lock; trySend checks it
	// before enqueueing so nothing writes to a closed queue.
	closed bool
}

// NewClient wraps a websocket connection. conn may be nil in tests; the pumps
// are started by the transport handler, not here.
func NewClient(conn *websocket.Conn, queueSize int) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, queueSize),
	}
}
