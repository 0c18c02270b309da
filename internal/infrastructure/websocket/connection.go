package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla conn with a write mutex: the broadcast write
// pump and direct bid-result replies both write to the socket.
type Connection struct {
	ID     string
	UserID string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewConnection(id, userID string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:     id,
		UserID: userID,
		conn:   conn,
	}
}

func (c *Connection) SendJSON(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(message)
}

func (c *Connection) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Connection) ReadJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Connection) SetPongHandler(h func(string) error) {
	c.conn.SetPongHandler(h)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}
