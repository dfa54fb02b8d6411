package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// client serializes writes to one websocket connection.
type client struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	send     chan frame
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, logger *zap.Logger) *client {
	return &client{
		id:     id,
		conn:   conn,
		logger: logger,
		send:   make(chan frame, sendBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// enqueue hands f to the writer. Frames are dropped once the client stops.
func (c *client) enqueue(f frame) {
	select {
	case c.send <- f:
	case <-c.quit:
	}
}

// writePump writes queued frames until stop. After a write error it keeps
// draining so producers never block.
func (c *client) writePump() {
	defer close(c.done)
	broken := false
	for {
		select {
		case f := <-c.send:
			if broken {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.logger.Debug("websocket write failed", zap.String("conn", c.id), zap.Error(err))
				broken = true
			}
		case <-c.quit:
			c.flush(broken)
			return
		}
	}
}

// flush writes whatever is still queued when the client stops.
func (c *client) flush(broken bool) {
	for {
		select {
		case f := <-c.send:
			if broken {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				broken = true
			}
		default:
			return
		}
	}
}

// stop ends the writer and waits for it.
func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	<-c.done
}
