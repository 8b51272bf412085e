package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/identity"
	"realtime-service/internal/models"
)

// connWriter is the slice of *websocket.Conn the hub writes through. Tests
// substitute recording fakes.
type connWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live transport session. Identity fields start from the
// handshake result and may be upgraded in place by token_updated.
type Client struct {
	ID          string
	ConnectedAt time.Time
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string

	conn    connWriter
	writeMu sync.Mutex

	idMu sync.RWMutex
	id   identity.Identity
}

func newClient(conn connWriter, id identity.Identity) *Client {
	return &Client{
		ID:          newConnID(),
		ConnectedAt: time.Now(),
		conn:        conn,
		id:          id,
	}
}

// Identity returns a snapshot of the connection's current identity.
func (c *Client) Identity() identity.Identity {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.id
}

func (c *Client) setIdentity(id identity.Identity) {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.id = id
}

// Send serializes and writes one server event. gorilla/websocket allows a
// single concurrent writer, so writes are serialized per connection.
func (c *Client) Send(event models.ServerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
