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

package scheduler

import (
	"log"
	"sync"
	"time"
)

var timeAfterFunc = time.AfterFunc

type wrkCtl struct {
	wg, startWg *sync.WaitGroup
	id          string
}

func (w *wrkCtl) ident() string { return w.id }
func (w *wrkCtl) onEnter()      { w.wg.Add(1) }
func (w *wrkCtl) onExit()       { w.wg.Done() }
func (w *wrkCtl) onStarted()    { w.startWg.Done() }

type wController interface {
	ident() string
	onEnter()
	onExit()
	onStarted()
}

// renderLoop provides rendering opportunities at a fixed cadence.
// Flush itself is a no-op when nothing is pending, so an idle loop
// costs one mutex acquisition per interval.
var renderLoop = func(wc wController, s *Scheduler, interval time.Duration, stopCh chan struct{}) {
	wc.onEnter()
	defer wc.onExit()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("%s: started (interval %v).", wc.ident(), interval)
	wc.onStarted()

	for {
		select {
		case <-stopCh:
			log.Printf("%s: stopping.", wc.ident())
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

var doStart = func(s *Scheduler) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopRenderCh = make(chan struct{})
	stopCh := s.stopRenderCh
	interval := s.RenderInterval
	s.mu.Unlock()

	var startWg sync.WaitGroup
	startWg.Add(1)
	go renderLoop(&wrkCtl{wg: &s.renderWg, startWg: &startWg, id: "renderLoop"}, s, interval, stopCh)
	startWg.Wait()
}

var doDispose = func(s *Scheduler) {
	s.mu.Lock()
	started := s.started
	s.started = false
	stopCh := s.stopRenderCh
	if s.quietTimer != nil {
		s.quietTimer.Stop()
		s.quietTimer = nil
	}
	s.interacting = false
	s.mu.Unlock()

	if started {
		close(stopCh)
		s.renderWg.Wait()
	}
}

// Start launches the internal render loop. Callers that drive
// rendering opportunities themselves (calling Flush from their own
// frame timer) do not need it.
func (s *Scheduler) Start() {
	doStart(s)
}

// Dispose stops the render loop and the interaction quiet timer. No
// timers or goroutines leak past it. Ingest remains safe to call
// after Dispose, it just accumulates.
func (s *Scheduler) Dispose() {
	doDispose(s)
}
