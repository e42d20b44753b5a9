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
	"sync"
	"testing"
	"time"

	"github.com/devpulse/devpulse/series"
)

func Test_wrkCtl(t *testing.T) {
	wg, startWg := &sync.WaitGroup{}, &sync.WaitGroup{}
	wc := &wrkCtl{wg: wg, startWg: startWg, id: "abc"}
	if wc.ident() != "abc" {
		t.Errorf(`wc.ident() != "abc"`)
	}
	started := false
	done := &sync.WaitGroup{}
	startWg.Add(1)
	done.Add(1)
	go func() { startWg.Wait(); started = true; done.Done() }()
	wc.onEnter()
	wc.onStarted()
	wc.onExit()
	wg.Wait()
	startWg.Wait()
	done.Wait()
	if !started {
		t.Errorf("onStarted did not release startWg")
	}
}

func Test_Scheduler_Start_launchesRenderLoop(t *testing.T) {
	launched := 0
	saveRL := renderLoop
	renderLoop = func(wc wController, s *Scheduler, interval time.Duration, stopCh chan struct{}) {
		launched++
		wc.onStarted()
	}
	defer func() { renderLoop = saveRL }()

	s := New(series.NewStore(4), nil)
	s.Start()
	s.Start() // idempotent
	if launched != 1 {
		t.Errorf("render loop launched %d times, want 1", launched)
	}
}

func Test_Scheduler_StartDispose(t *testing.T) {
	s := New(series.NewStore(4), nil)
	s.RenderInterval = 5 * time.Millisecond
	c := &fakeConsumer{}
	s.AddConsumer(c)

	s.Start()
	s.Ingest(utilSnap("gpu0", 7), time.Now())

	// the render loop should flush on its own within a few intervals
	var got bool
	for i := 0; i < 100; i++ {
		if c.byEntity("gpu0") != nil {
			got = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !got {
		t.Fatalf("render loop never delivered the pending update")
	}

	s.Dispose()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		t.Errorf("Dispose should mark the scheduler stopped")
	}
	s.Dispose() // second Dispose is a no-op
}

func Test_Scheduler_DisposeSeam(t *testing.T) {
	disposed := false
	saveDD := doDispose
	doDispose = func(s *Scheduler) { disposed = true }
	defer func() { doDispose = saveDD }()

	s := New(series.NewStore(4), nil)
	s.Dispose()
	if !disposed {
		t.Errorf("Dispose did not delegate to doDispose")
	}
}
