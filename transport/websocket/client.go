package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one WebSocket connection. Writes go through send and are done by writePump only.
type client struct {
	id     string
	userID int64
	conn   *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, userID int64, conn *websocket.Conn) *client {
	return &client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue queues data for writing. It closes the connection and returns false when the buffer is full.
func (that *client) enqueue(data []byte) bool {
	select {
	case <-that.done:
		return false
	default:
	}

	select {
	case that.send <- data:
		return true
	default:
		that.close()
		return false
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}

func (that *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				that.close()
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				that.close()
				return
			}
		case <-that.done:
			return
		}
	}
}
