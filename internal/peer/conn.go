package peer

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = time.Minute
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Conn is the transport a Client talks through. Only one goroutine may
// call Write/Ping at a time.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close(reason string)
}

type websocketConnection struct {
	socket *websocket.Conn
}

func (wc *websocketConnection) Write(data []byte) error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(reason string) {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	_ = wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = wc.socket.Close()
}

// NewWebsocketConnection wraps an upgraded socket. The read deadline is
// pushed forward on every pong.
func NewWebsocketConnection(conn *websocket.Conn) Conn {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &websocketConnection{conn}
}
