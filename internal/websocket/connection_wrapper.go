package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// conn adapts *websocket.Conn to Connection
type conn struct {
	ws *websocket.Conn
}

// WrapConn returns ws as a Connection
func WrapConn(ws *websocket.Conn) Connection {
	return &conn{ws: ws}
}

func (c *conn) WriteMessage(messageType int, data []byte) error {
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *conn) Close() error {
	return c.ws.Close()
}

func (c *conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *conn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

func (c *conn) SetReadLimit(limit int64) {
	c.ws.SetReadLimit(limit)
}

func (c *conn) SetPongHandler(h func(string) error) {
	c.ws.SetPongHandler(h)
}

func (c *conn) RemoteAddr() string {
	if addr := c.ws.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
