// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait   = 5 * time.Second
	clientQueue = 4
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins on the local network
	},
}

// WebFeed pushes every summary to connected websocket clients. A client
// that falls behind loses intermediate summaries, never the newest one.
type WebFeed struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	last    *Summary
}

type feedClient struct {
	conn *websocket.Conn
	send chan Summary
}

func NewWebFeed(logger *zap.Logger) *WebFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebFeed{
		logger:  logger.Named("webfeed"),
		clients: make(map[*feedClient]struct{}),
	}
}

// Show broadcasts s. It never blocks on a client.
func (f *WebFeed) Show(s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &s
	for c := range f.clients {
		offer(c.send, s)
	}
	return nil
}

// Clients returns the number of connected clients.
func (f *WebFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// ServeHTTP upgrades the request and streams summaries until the client
// goes away. The newest summary is sent immediately on connect.
func (f *WebFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &feedClient{conn: conn, send: make(chan Summary, clientQueue)}

	f.mu.Lock()
	f.clients[c] = struct{}{}
	if f.last != nil {
		c.send <- *f.last
	}
	f.mu.Unlock()

	go f.readLoop(c)
	f.writeLoop(c)
}

func (f *WebFeed) writeLoop(c *feedClient) {
	defer f.remove(c)
	for s := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(s); err != nil {
			f.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// readLoop discards client messages and detects disconnects.
func (f *WebFeed) readLoop(c *feedClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.Debug("websocket read failed", zap.Error(err))
			}
			f.remove(c)
			return
		}
	}
}

func (f *WebFeed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
	c.conn.Close()
}

// offer enqueues s, evicting the oldest queued summary when full.
func offer(ch chan Summary, s Summary) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
