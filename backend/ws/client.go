// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package ws binds the relay to persistent WebSocket connections: one
// session per connection, with separate read and write pumps.
package ws

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// Voice notes arrive base64-encoded inside the frame.
	maxFrameSize = 10 << 20

	sendBuffer = 256
)

var (
	// ErrClientGone is returned by Deliver after the connection closed.
	ErrClientGone = errors.New("client connection closed")
	// ErrSlowConsumer is returned when the send buffer is full. The frame
	// is dropped for this recipient; there is no retry.
	ErrSlowConsumer = errors.New("client send buffer full")
)

// Client is the transport handle of one WebSocket connection. It satisfies
// presence.Peer: Deliver never blocks, it enqueues on a buffered channel
// drained by the write pump.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Deliver enqueues one frame for the write pump.
func (c *Client) Deliver(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientGone
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection: %v", err)
		}
	})
}

// writePump serializes all writes to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("WebSocket write error: %v", err)
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		}
	}
}

// isExpectedCloseError filters the noise of ordinary disconnects.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
