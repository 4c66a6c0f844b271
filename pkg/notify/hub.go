/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package notify pkg/notify/hub.go broadcasts change notifications to
// dashboard clients over websockets.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	TypeStatusUpdate = "STATUS_UPDATE"
	TypeUpdateAck    = "UPDATE_ACK"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 8
)

// Message is the envelope exchanged with clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// Hub is a Notifier and an http.Handler. Every connected client receives a
// STATUS_UPDATE message per notification. Clients that cannot keep up are
// disconnected rather than blocking the broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.RWMutex
	clients map[*client]struct{}

	// OnClientsChange, if set, receives the client count after every change.
	OnClientsChange func(n int)
}

var _ Notifier = (*Hub)(nil)

// NewHub creates a hub accepting upgrades from allowedOrigins. An empty list
// accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		log:     logger.For("notify"),
		clients: make(map[*client]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		_, ok := set[origin]

		return ok
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}

	h.add(c)
	h.log.WithField("remote", c.remote).Info("client connected")

	go h.writePump(c)

	h.readPump(c)
	h.remove(c)
	h.log.WithField("remote", c.remote).Info("client disconnected")
}

// Notify broadcasts a STATUS_UPDATE carrying updated to every client.
func (h *Hub) Notify(_ context.Context, updated bool) {
	payload, err := json.Marshal(Message{Type: TypeStatusUpdate, Data: updated})
	if err != nil {
		h.log.WithError(err).Error("failed to encode status update")
		return
	}

	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("remote", c.remote).Warn("dropping slow client")
		h.remove(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.changed(0)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.changed(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.changed(n)
}

func (h *Hub) changed(n int) {
	if h.OnClientsChange != nil {
		h.OnClientsChange(n)
	}
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("remote", c.remote).Debug("client read failed")
			}

			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.WithField("remote", c.remote).Debug("ignoring malformed client message")
			continue
		}

		switch msg.Type {
		case TypeUpdateAck:
			h.log.WithFields(logrus.Fields{
				"remote": c.remote,
				"data":   msg.Data,
			}).Info("client acknowledged update")
		default:
			h.log.WithField("type", msg.Type).Debug("ignoring client message")
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			h.log.WithError(err).Debug("closing websocket")
		}
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
