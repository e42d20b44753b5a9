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
	"path/filepath"
	"testing"
	"time"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/series"
)

func Test_duration_UnmarshalText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Errorf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Minute {
		t.Errorf("d.Duration = %v, want 90m", d.Duration)
	}
	if err := d.UnmarshalText([]byte("notaduration")); err == nil {
		t.Errorf("bad duration should error")
	}
}

func Test_readConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "devpulse.conf")
	content := `
pid-file = "devpulse.pid"
log-file = "log/devpulse.log"
log-cycle-interval = "24h"
snapshot-text-listen-spec = "0.0.0.0:1098"
snapshot-udp-listen-spec = "0.0.0.0:1098"
http-listen-spec = "0.0.0.0:8888"
window-size = 240
render-interval = "50ms"
text-update-throttle = "2s"
interaction-quiet-period = "250ms"
tick-coalesce-window = "25ms"
self-telemetry = true
self-entity = "workstation"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := readConfig(cfgPath)
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if cfg.PidPath != "devpulse.pid" || cfg.LogPath != "log/devpulse.log" {
		t.Errorf("paths not read: %+v", cfg)
	}
	if cfg.LogCycle.Duration != 24*time.Hour {
		t.Errorf("log-cycle-interval = %v", cfg.LogCycle.Duration)
	}
	if cfg.WindowSize != 240 || cfg.RenderInterval.Duration != 50*time.Millisecond {
		t.Errorf("pipeline settings not read: %+v", cfg)
	}
	if !cfg.SelfTelemetry || cfg.SelfEntity != "workstation" {
		t.Errorf("self telemetry settings not read: %+v", cfg)
	}

	if _, err := readConfig(filepath.Join(dir, "nonexistent.conf")); err == nil {
		t.Errorf("missing config file should error")
	}
}

func Test_config_defaults(t *testing.T) {
	c := &Config{}
	if err := c.processWindowSize(); err != nil {
		t.Errorf("processWindowSize: %v", err)
	}
	if c.WindowSize != series.DefaultWindowSize {
		t.Errorf("WindowSize default = %d", c.WindowSize)
	}
	c.WindowSize = -1
	if err := c.processWindowSize(); err == nil {
		t.Errorf("negative window-size should error")
	}

	c = &Config{}
	c.processRenderInterval()
	c.processTextUpdateThrottle()
	c.processInteractionQuietPeriod()
	c.processTickCoalesceWindow()
	if c.RenderInterval.Duration != scheduler.DefaultRenderInterval ||
		c.TextUpdateThrottle.Duration != scheduler.TextUpdateThrottle ||
		c.InteractionQuietPeriod.Duration != scheduler.InteractionQuietPeriod ||
		c.TickCoalesceWindow.Duration != 50*time.Millisecond {
		t.Errorf("duration defaults not applied: %+v", c)
	}
}

func Test_config_processSelfTelemetry(t *testing.T) {
	c := &Config{SelfTelemetry: true}
	if err := c.processSelfTelemetry(); err != nil {
		t.Errorf("processSelfTelemetry: %v", err)
	}
	if c.SelfEntity == "" {
		t.Errorf("self-entity should default to the hostname")
	}

	c = &Config{SelfTelemetry: true, SelfEntity: "box"}
	c.processSelfTelemetry()
	if c.SelfEntity != "box" {
		t.Errorf("explicit self-entity should be kept")
	}
}

func Test_config_processPidAndLog(t *testing.T) {
	dir := t.TempDir()

	c := &Config{}
	if err := c.processConfigPidFile(dir); err == nil {
		t.Errorf("empty pid-file should error")
	}
	c.PidPath = "devpulse.pid"
	if err := c.processConfigPidFile(dir); err != nil {
		t.Errorf("processConfigPidFile: %v", err)
	}
	if c.PidPath != filepath.Join(dir, "devpulse.pid") {
		t.Errorf("relative pid-file not anchored at wd: %q", c.PidPath)
	}

	c.LogPath = "log/devpulse.log"
	if err := c.processConfigLogFile(dir); err != nil {
		t.Errorf("processConfigLogFile: %v", err)
	}
	if c.LogPath != filepath.Join(dir, "log/devpulse.log") {
		t.Errorf("relative log-file not anchored at wd: %q", c.LogPath)
	}
	if _, err := os.Stat(filepath.Join(dir, "log")); err != nil {
		t.Errorf("log directory should have been created: %v", err)
	}
}
