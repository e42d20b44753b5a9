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

// Package daemon assembles the pipeline into a long-running process:
// config, logging, the snapshot listeners, the HTTP/WebSocket server
// and the optional self-telemetry producer.
package daemon

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/devpulse/devpulse/rate"
	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/series"
)

var (
	logFile    *os.File
	cycleLogCh      = make(chan int)
	quitting   bool = false
)

var savePid = func(pidPath string) error {
	f, err := os.Create(pidPath)
	if err != nil {
		return fmt.Errorf("Unable to create pid file '%s': (%v)", pidPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "%d\n", os.Getpid())
	log.Printf("Pid saved in %s.", pidPath)
	return nil
}

var getCwd = func() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Unable to determine working directory: %v", err)
		return ""
	}
	return wd
}

var createScheduler = func(cfg *Config) *scheduler.Scheduler {
	store := series.NewStore(cfg.WindowSize)
	engine := rate.NewEngine(cfg.TickCoalesceWindow.Duration)
	sched := scheduler.New(store, engine)
	sched.TextThrottle = cfg.TextUpdateThrottle.Duration
	sched.InteractionQuiet = cfg.InteractionQuietPeriod.Duration
	sched.RenderInterval = cfg.RenderInterval.Duration
	return sched
}

var startScheduler = func(sched *scheduler.Scheduler) {
	sched.Start()
}

var waitForSignal = func(sched *scheduler.Scheduler, sm *serviceManager) {
	for {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		s := <-ch
		log.Printf("Got signal: %v", s)
		if s == syscall.SIGHUP {
			cycleLogCh <- 1
		} else {
			log.Printf("Shutting down...")
			sm.closeListeners()
			sched.Dispose()
			return
		}
	}
}

// Init is the daemon entry point (not to be confused with init()). It
// returns only on SIGINT/SIGTERM, after everything has been shut
// down; the caller passes the returned config to Finish.
func Init(cfgPath string) *Config {

	runtime.GOMAXPROCS(runtime.NumCPU())

	log.Printf("DevPulse starting.")

	cfg, err := readConfig(cfgPath)
	if err != nil {
		log.Fatalf("Error reading config file %s: %v", cfgPath, err)
	}

	if err := processConfig(configer(cfg), getCwd()); err != nil {
		log.Fatalf("Error in config file %s: %v", cfgPath, err)
	}

	if err := savePid(cfg.PidPath); err != nil {
		log.Fatalf("%v", err)
	}

	sched := createScheduler(cfg)

	sm := newServiceManager(sched, cfg)
	if err := sm.run(); err != nil {
		log.Printf("Could not run the service manager: %v", err)
		// listeners that did come up must not outlive the failed init
		sm.closeListeners()
		os.Remove(cfg.PidPath)
		return nil
	}

	startScheduler(sched)

	waitForSignal(sched, sm)

	return cfg
}

// Finish closes the log and removes the pid file.
func Finish(cfg *Config) {
	quitting = true
	log.Printf("main: All services stopped, exiting.")

	log.SetOutput(os.Stderr)
	if logFile != nil {
		logFile.Close()
	}

	os.Remove(cfg.PidPath)
}
