package relay

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
)

// endpoint is the per-connection context owned by the connection handler:
// the relay-assigned identifier, the socket, and the discovery ticker's stop
// channel. Identifiers are never reused across reconnects.
type endpoint struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newEndpoint(id string, conn *websocket.Conn) *endpoint {
	return &endpoint{
		id:   id,
		conn: conn,
		done: make(chan struct{}),
	}
}

func (e *endpoint) send(env protocol.Envelope) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteJSON(env)
}

func (e *endpoint) close() {
	e.closeOnce.Do(func() {
		close(e.done)
		_ = e.conn.Close()
	})
}
