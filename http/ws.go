//
// Copyright 2025 The DevPulse Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devpulse/devpulse/scheduler"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsControl is what a client may send us: interaction signals and
// foreground/watch changes.
type wsControl struct {
	Interacting *bool   `json:"interacting,omitempty"`
	Watch       *string `json:"watch,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans scheduler updates out to connected WebSocket clients. It
// is registered as an ordinary consumer; Apply marshals the update
// once and enqueues it per client, dropping the update for clients
// whose send buffer is full rather than blocking the flush.
type Hub struct {
	sched *scheduler.Scheduler

	mu      sync.RWMutex
	clients map[*wsClient]bool

	dropped int64 // slow-client drops, for the log
}

func NewHub(sched *scheduler.Scheduler) *Hub {
	return &Hub{sched: sched, clients: make(map[*wsClient]bool)}
}

// Apply implements scheduler.Consumer.
func (h *Hub) Apply(u *scheduler.Update) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return nil
	}

	body, err := json.Marshal(u)
	if err != nil {
		return err
	}

	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			h.dropped++
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws: client connected (total: %d)", n)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws: client disconnected (total: %d)", n)
}

// ServeWS upgrades the connection and runs the read/write pumps.
func (h *Hub) ServeWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws: upgrade error: %v", err)
			return
		}
		c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
		h.register(c)

		go h.writePump(c)
		go h.readPump(c)
	}
}

// readPump parses client control messages until the connection dies.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}

		var ctl wsControl
		if err := json.Unmarshal(msg, &ctl); err != nil {
			log.Printf("ws: bad control message: %q", msg)
			continue
		}
		if ctl.Interacting != nil && *ctl.Interacting {
			h.sched.InteractionSignal()
		}
		if ctl.Watch != nil {
			h.sched.Foreground(*ctl.Watch)
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
