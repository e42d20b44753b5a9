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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/telemetry"
)

func Test_Hub_Apply(t *testing.T) {
	hub := NewHub(scheduler.New(nil, nil))

	// no clients: marshal is skipped entirely
	if err := hub.Apply(&scheduler.Update{Entity: "gpu0"}); err != nil {
		t.Errorf("Apply with no clients: %v", err)
	}

	c := &wsClient{send: make(chan []byte, 2)}
	hub.register(c)

	if err := hub.Apply(&scheduler.Update{Entity: "gpu0"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	select {
	case body := <-c.send:
		var u scheduler.Update
		if err := json.Unmarshal(body, &u); err != nil || u.Entity != "gpu0" {
			t.Errorf("bad broadcast body: %s (%v)", body, err)
		}
	default:
		t.Errorf("nothing enqueued for the client")
	}

	// slow client: buffer fills, updates are dropped, Apply never blocks
	for i := 0; i < 5; i++ {
		hub.Apply(&scheduler.Update{Entity: "gpu0"})
	}
	if hub.dropped == 0 {
		t.Errorf("expected drops once the client buffer filled")
	}

	hub.unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after unregister", hub.ClientCount())
	}
}

func Test_Hub_endToEnd(t *testing.T) {
	sched := scheduler.New(nil, nil)
	hub := NewHub(sched)
	sched.AddConsumer(hub)

	srv := httptest.NewServer(hub.ServeWS())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 100; i++ {
		if hub.ClientCount() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("client never registered")
	}

	// control messages operate the gates
	if err := conn.WriteJSON(map[string]interface{}{"watch": "gpu0", "interacting": true}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	for i := 0; i < 100; i++ {
		if sched.Foregrounded() == "gpu0" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sched.Foregrounded() != "gpu0" {
		t.Errorf("watch control message was not applied")
	}

	// once the quiet period passes, flushes reach the socket
	time.Sleep(2 * scheduler.InteractionQuietPeriod)
	sched.Ingest(&telemetry.Snapshot{
		Entity: "gpu0",
		Fields: map[string]float64{telemetry.ChUtilization: 42},
	}, time.Now())
	sched.Flush()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got *scheduler.Update
	for got == nil {
		var u scheduler.Update
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if u.Entity == "gpu0" {
			got = &u
		}
	}
	if !got.Detailed {
		t.Errorf("foregrounded entity should get the detailed update")
	}
	if got.Channels[telemetry.ChUtilization].Stats.Current != 42 {
		t.Errorf("Current = %v, want 42", got.Channels[telemetry.ChUtilization].Stats.Current)
	}
}
