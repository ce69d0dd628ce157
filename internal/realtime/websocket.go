package realtime

import "github.com/gofiber/websocket/v2"

// WebSocketConn wraps websocket.Conn so the hub does not depend on the
// transport.
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// WriteLoop forwards queued messages until send is closed or a write fails.
func (w *WebSocketConn) WriteLoop(send <-chan []byte) error {
	for msg := range send {
		if err := w.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return w.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadLoop drains client frames (pings, acks) until the peer goes away.
func (w *WebSocketConn) ReadLoop() error {
	for {
		if _, _, err := w.Conn.ReadMessage(); err != nil {
			return err
		}
	}
}
