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
	"os"
	"strings"
	"time"

	"github.com/devpulse/devpulse/scheduler"
)

type dpService interface {
	Start() error
	Stop()
}

type serviceMap map[string]dpService
type serviceManager struct {
	sched    *scheduler.Scheduler
	services serviceMap
}

func newServiceManager(sched *scheduler.Scheduler, cfg *Config) *serviceManager {
	sm := &serviceManager{sched: sched,
		services: serviceMap{
			"st":  &snapshotTextServiceManager{sched: sched, listenSpec: cfg.SnapshotTextListenSpec, timeout: 30 * time.Second},
			"su":  &snapshotTextServiceManager{sched: sched, listenSpec: cfg.SnapshotUdpListenSpec, udp: true},
			"www": &wwwServer{sched: sched, listenSpec: cfg.HttpListenSpec},
		},
	}
	if cfg.SelfTelemetry {
		sm.services["self"] = &selfTelemetryService{sched: sched, entity: cfg.SelfEntity}
	}
	return sm
}

func processListenSpec(listenSpec string) string {
	if os.Getenv("DEVPULSE_BIND") != "" {
		return strings.Replace(listenSpec, "0.0.0.0", os.Getenv("DEVPULSE_BIND"), 1)
	}
	return listenSpec
}

func (r *serviceManager) run() error {
	for _, service := range r.services {
		if err := service.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *serviceManager) closeListeners() {
	for _, service := range r.services {
		service.Stop()
	}
}
