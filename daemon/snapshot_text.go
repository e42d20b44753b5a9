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

package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/telemetry"
)

// The snapshot text protocol is one JSON object per line, over TCP or
// UDP. Times are unix milliseconds; a missing or zero time means "on
// arrival". Counter values are cumulative since producer start.
type wireSnapshot struct {
	Entity   string             `json:"entity"`
	Source   string             `json:"source,omitempty"`
	Time     int64              `json:"time,omitempty"`
	Fields   map[string]float64 `json:"fields,omitempty"`
	Counters *wireCounters      `json:"counters,omitempty"`
}

type wireCounters struct {
	RecvBytes  *uint64 `json:"recvBytes,omitempty"`
	SentBytes  *uint64 `json:"sentBytes,omitempty"`
	ReadBytes  *uint64 `json:"readBytes,omitempty"`
	WriteBytes *uint64 `json:"writeBytes,omitempty"`
}

type snapshotTextServiceManager struct {
	sched      *scheduler.Scheduler
	listenSpec string
	udp        bool
	stop       int32

	// TCP
	listener net.Listener
	connWg   sync.WaitGroup
	timeout  time.Duration

	// UDP
	conn net.Conn
}

func (g *snapshotTextServiceManager) Stop() {
	if g.stopped() {
		return
	}
	atomic.StoreInt32(&(g.stop), 1)
	if g.conn != nil {
		log.Printf("Closing UDP listener %s", g.listenSpec)
		g.conn.Close()
	}
	if g.listener != nil {
		log.Printf("Closing TCP listener %s", g.listenSpec)
		g.listener.Close()
		g.connWg.Wait()
	}
}

func (g *snapshotTextServiceManager) Start() error {
	if g.udp {
		return g.startUDP()
	}
	return g.startTCP()
}

func (g *snapshotTextServiceManager) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

func (g *snapshotTextServiceManager) startUDP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting snapshot UDP protocol because snapshot-udp-listen-spec is blank.")
		return nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", processListenSpec(g.listenSpec))
	if err == nil {
		g.conn, err = net.ListenUDP("udp", udpAddr)
	}
	if err != nil {
		return fmt.Errorf("Error starting snapshot UDP protocol: %v", err)
	}

	fmt.Printf("Snapshot UDP protocol listening on %s\n", processListenSpec(g.listenSpec))

	// UDP only has one connection, unlike TCP
	go g.handleSnapshotTextProtocol(g.conn)

	return nil
}

func (g *snapshotTextServiceManager) startTCP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting snapshot text protocol because snapshot-text-listen-spec is blank")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting snapshot text protocol: %v", err)
	}
	g.listener = gl

	fmt.Println("Snapshot text protocol listening on " + processListenSpec(g.listenSpec))

	go g.snapshotTCPTextServer()

	return nil
}

func (g *snapshotTextServiceManager) snapshotTCPTextServer() error {

	var tempDelay time.Duration
	for {
		if g.stopped() {
			return nil
		}
		conn, err := g.listener.Accept()

		if err != nil {
			// see http://golang.org/src/net/http/server.go?s=51504:51550#L1729
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Printf("snapshotTCPTextServer(): Accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		g.connWg.Add(1)
		go func() {
			defer g.connWg.Done()
			g.handleSnapshotTextProtocol(conn)
		}()
	}
}

// Handles incoming requests for both TCP and UDP
func (g *snapshotTextServiceManager) handleSnapshotTextProtocol(conn net.Conn) {
	defer conn.Close()

	if g.timeout != 0 {
		conn.SetDeadline(time.Now().Add(g.timeout))
	}

	// We use Scanner, because it has a MaxScanTokenSize of 64K
	connbuf := bufio.NewScanner(conn)

	for connbuf.Scan() {
		line := connbuf.Bytes()
		if len(line) == 0 {
			continue
		}

		if snap, when, err := parseSnapshotPacket(line); err != nil {
			log.Printf("handleSnapshotTextProtocol(): bad packet: %v (%v)", string(line), err)
		} else {
			g.sched.Ingest(snap, when)
		}

		if g.timeout != 0 {
			conn.SetDeadline(time.Now().Add(g.timeout))
		}

		if g.stopped() {
			return
		}
	}

	if err := connbuf.Err(); err != nil {
		if !strings.Contains(err.Error(), "use of closed") {
			log.Printf("handleSnapshotTextProtocol(): Error reading: %v", err)
		}
	}
}

func parseSnapshotPacket(line []byte) (*telemetry.Snapshot, time.Time, error) {
	var w wireSnapshot
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, time.Time{}, err
	}
	if w.Entity == "" {
		return nil, time.Time{}, fmt.Errorf("missing entity")
	}

	snap := &telemetry.Snapshot{
		Entity: telemetry.SanitizeKey(w.Entity),
		Source: telemetry.SanitizeKey(w.Source),
		Fields: w.Fields,
	}

	if w.Counters != nil {
		c := &telemetry.Counters{}
		if w.Counters.RecvBytes != nil || w.Counters.SentBytes != nil {
			c.HasNet = true
			if w.Counters.RecvBytes != nil {
				c.RecvBytes = *w.Counters.RecvBytes
			}
			if w.Counters.SentBytes != nil {
				c.SentBytes = *w.Counters.SentBytes
			}
		}
		if w.Counters.ReadBytes != nil || w.Counters.WriteBytes != nil {
			c.HasDisk = true
			if w.Counters.ReadBytes != nil {
				c.ReadBytes = *w.Counters.ReadBytes
			}
			if w.Counters.WriteBytes != nil {
				c.WriteBytes = *w.Counters.WriteBytes
			}
		}
		if c.HasNet || c.HasDisk {
			snap.Counters = c
		}
	}

	when := time.Now()
	if w.Time > 0 {
		when = time.UnixMilli(w.Time)
	}
	return snap, when, nil
}
