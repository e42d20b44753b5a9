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
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/telemetry"
)

// selfTelemetryService feeds the daemon's own host into the pipeline
// as an ordinary entity. Handy as a built-in producer when no remote
// node is wired up yet, and as a liveness reference next to remote
// entities.
type selfTelemetryService struct {
	sched    *scheduler.Scheduler
	entity   string
	interval time.Duration
	stopCh   chan struct{}
}

func (s *selfTelemetryService) Start() error {
	s.stopCh = make(chan struct{})
	// collect gets its own reference; it must never re-read the
	// field, which Stop mutates
	go s.collect(s.stopCh)
	log.Printf("Self telemetry started for entity %q.", s.entity)
	return nil
}

func (s *selfTelemetryService) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *selfTelemetryService) collect(stopCh chan struct{}) {
	iv := s.interval
	if iv == 0 {
		iv = telemetry.NominalTick
	}
	ticker := time.NewTicker(iv)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.sched.Ingest(s.snapshot(), time.Now())
		}
	}
}

func (s *selfTelemetryService) snapshot() *telemetry.Snapshot {
	fields := map[string]float64{}

	if ps, err := cpu.Percent(0, false); err == nil && len(ps) > 0 {
		fields[telemetry.ChUtilization] = ps[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields[telemetry.ChMemory] = float64(vm.Used)
		fields[telemetry.ChMemoryTotal] = float64(vm.Total)
	}
	if avg, err := load.Avg(); err == nil {
		fields[telemetry.ChLoad1] = avg.Load1
		fields[telemetry.ChLoad5] = avg.Load5
		fields[telemetry.ChLoad15] = avg.Load15
	}
	if temps, err := host.SensorsTemperatures(); err == nil && len(temps) > 0 {
		fields[telemetry.ChTemperature] = temps[0].Temperature
	}

	counters := &telemetry.Counters{}
	if nio, err := gnet.IOCounters(false); err == nil && len(nio) > 0 {
		counters.RecvBytes = nio[0].BytesRecv
		counters.SentBytes = nio[0].BytesSent
		counters.HasNet = true
	}
	if dio, err := disk.IOCounters(); err == nil {
		for _, d := range dio {
			counters.ReadBytes += d.ReadBytes
			counters.WriteBytes += d.WriteBytes
			counters.HasDisk = true
		}
	}

	snap := &telemetry.Snapshot{Entity: s.entity, Fields: fields}
	if counters.HasNet || counters.HasDisk {
		snap.Counters = counters
	}
	return snap
}
