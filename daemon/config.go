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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/series"
)

type Config struct { // Needs to be exported for TOML to work
	PidPath                string   `toml:"pid-file"`
	LogPath                string   `toml:"log-file"`
	LogCycle               duration `toml:"log-cycle-interval"`
	SnapshotTextListenSpec string   `toml:"snapshot-text-listen-spec"`
	SnapshotUdpListenSpec  string   `toml:"snapshot-udp-listen-spec"`
	HttpListenSpec         string   `toml:"http-listen-spec"`
	WindowSize             int      `toml:"window-size"`
	RenderInterval         duration `toml:"render-interval"`
	TextUpdateThrottle     duration `toml:"text-update-throttle"`
	InteractionQuietPeriod duration `toml:"interaction-quiet-period"`
	TickCoalesceWindow     duration `toml:"tick-coalesce-window"`
	SelfTelemetry          bool     `toml:"self-telemetry"`
	SelfEntity             string   `toml:"self-entity"`
}

type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var readConfig = func(cfgPath string) (*Config, error) {
	cfg := &Config{}
	_, err := toml.DecodeFile(cfgPath, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) processConfigPidFile(wd string) error {
	if c.PidPath == "" {
		return fmt.Errorf("pid-file setting empty")
	}
	if !filepath.IsAbs(c.PidPath) {
		if wd == "" {
			return fmt.Errorf("pid-file must be absolute path if working directory cannot be determined")
		}
		c.PidPath = filepath.Join(wd, c.PidPath)
	}
	pidDir, _ := filepath.Split(c.PidPath)
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", pidDir, err)
	}
	return nil
}

func (c *Config) processConfigLogFile(wd string) error {
	if os.Getenv("DEVPULSE_LOG") != "" {
		c.LogPath = os.Getenv("DEVPULSE_LOG")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log-file setting empty")
	}
	if !filepath.IsAbs(c.LogPath) {
		if wd == "" {
			return fmt.Errorf("log-file must be absolute path if working directory cannot be determined")
		}
		c.LogPath = filepath.Join(wd, c.LogPath)
	}
	logDir, _ := filepath.Split(c.LogPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", logDir, err)
	}

	log.Printf("Logs will be written to '%s'.", c.LogPath)
	return nil
}

func (c *Config) processConfigLogCycleInterval() error {
	if c.LogCycle.Duration == 0 {
		return fmt.Errorf("log-cycle-interval setting empty")
	}
	log.Printf("Will cycle logs every %v (log-cycle-interval).", c.LogCycle.Duration)

	logDir, _ := filepath.Split(c.LogPath)
	log.Printf("All further status messages will be written to log file(s) in '%s'.", logDir)
	logFileCycler(c.LogPath, c.LogCycle.Duration)
	log.Print("Server starting.")

	return nil
}

func (c *Config) processWindowSize() error {
	if c.WindowSize == 0 {
		c.WindowSize = series.DefaultWindowSize
		log.Printf("window-size unspecified, defaults to %d points.", c.WindowSize)
	} else if c.WindowSize < 0 {
		return fmt.Errorf("window-size must be positive, got %d", c.WindowSize)
	} else {
		log.Printf("Each channel keeps a rolling window of %d points (window-size).", c.WindowSize)
	}
	return nil
}

func (c *Config) processRenderInterval() error {
	if c.RenderInterval.Duration == 0 {
		c.RenderInterval.Duration = scheduler.DefaultRenderInterval
		log.Printf("render-interval unspecified, defaults to %v.", c.RenderInterval.Duration)
	} else {
		log.Printf("Rendering opportunities every %v (render-interval).", c.RenderInterval.Duration)
	}
	return nil
}

func (c *Config) processTextUpdateThrottle() error {
	if c.TextUpdateThrottle.Duration == 0 {
		c.TextUpdateThrottle.Duration = scheduler.TextUpdateThrottle
	}
	log.Printf("Text/label refreshes at most every %v per entity (text-update-throttle).", c.TextUpdateThrottle.Duration)
	return nil
}

func (c *Config) processInteractionQuietPeriod() error {
	if c.InteractionQuietPeriod.Duration == 0 {
		c.InteractionQuietPeriod.Duration = scheduler.InteractionQuietPeriod
	}
	log.Printf("Interaction gate reopens %v after the last signal (interaction-quiet-period).", c.InteractionQuietPeriod.Duration)
	return nil
}

func (c *Config) processTickCoalesceWindow() error {
	if c.TickCoalesceWindow.Duration == 0 {
		c.TickCoalesceWindow.Duration = 50 * time.Millisecond
	}
	log.Printf("Counter observations within %v share a tick (tick-coalesce-window).", c.TickCoalesceWindow.Duration)
	return nil
}

func (c *Config) processSelfTelemetry() error {
	if !c.SelfTelemetry {
		log.Printf("Self telemetry is off (self-telemetry).")
		return nil
	}
	if c.SelfEntity == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "self"
		}
		c.SelfEntity = host
	}
	log.Printf("Self telemetry will be reported as entity %q (self-entity).", c.SelfEntity)
	return nil
}

type configer interface {
	processConfigPidFile(string) error
	processConfigLogFile(string) error
	processConfigLogCycleInterval() error
	processWindowSize() error
	processRenderInterval() error
	processTextUpdateThrottle() error
	processInteractionQuietPeriod() error
	processTickCoalesceWindow() error
	processSelfTelemetry() error
}

var processConfig = func(c configer, wd string) error {
	if err := c.processConfigPidFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogCycleInterval(); err != nil {
		return err
	}
	if err := c.processWindowSize(); err != nil {
		return err
	}
	if err := c.processRenderInterval(); err != nil {
		return err
	}
	if err := c.processTextUpdateThrottle(); err != nil {
		return err
	}
	if err := c.processInteractionQuietPeriod(); err != nil {
		return err
	}
	if err := c.processTickCoalesceWindow(); err != nil {
		return err
	}
	if err := c.processSelfTelemetry(); err != nil {
		return err
	}
	return nil
}
