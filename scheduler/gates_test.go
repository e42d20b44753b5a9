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
	"testing"
	"time"

	"github.com/devpulse/devpulse/series"
)

func Test_InteractionSignal_quietPeriod(t *testing.T) {
	s := New(series.NewStore(4), nil)
	s.InteractionQuiet = 20 * time.Millisecond

	s.InteractionSignal()
	if !s.Interacting() {
		t.Errorf("gate should close on signal")
	}
	time.Sleep(60 * time.Millisecond)
	if s.Interacting() {
		t.Errorf("gate should open after the quiet period")
	}
}

// repeated signals keep resetting the timer, the gate only opens once
// the signals stop
func Test_InteractionSignal_reset(t *testing.T) {
	s := New(series.NewStore(4), nil)
	s.InteractionQuiet = 50 * time.Millisecond

	for i := 0; i < 4; i++ {
		s.InteractionSignal()
		time.Sleep(20 * time.Millisecond)
		if !s.Interacting() {
			t.Fatalf("gate opened while signals were still arriving (i=%d)", i)
		}
	}
	time.Sleep(100 * time.Millisecond)
	if s.Interacting() {
		t.Errorf("gate should open after the last signal's quiet period")
	}
}

// an expiry that was already queued when a fresh signal reset the
// timer must not open the gate early
func Test_interactionExpired_staleFire(t *testing.T) {
	s := New(series.NewStore(4), nil)
	s.InteractionQuiet = time.Hour

	s.InteractionSignal()
	s.interactionExpired() // the lost-race fire, right after the signal
	if !s.Interacting() {
		t.Errorf("stale expiry opened the gate inside the quiet period")
	}

	// an expiry past the quiet period does open it
	s.mu.Lock()
	s.lastSignal = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()
	s.interactionExpired()
	if s.Interacting() {
		t.Errorf("gate should open after the quiet period")
	}
}

func Test_InteractionSignal_timerArming(t *testing.T) {
	s := New(series.NewStore(4), nil)

	armed := 0
	saveAfterFunc := timeAfterFunc
	timeAfterFunc = func(d time.Duration, f func()) *time.Timer {
		armed++
		return time.AfterFunc(time.Hour, f)
	}
	defer func() { timeAfterFunc = saveAfterFunc }()

	s.InteractionSignal()
	s.InteractionSignal()
	s.InteractionSignal()
	if armed != 1 {
		t.Errorf("one timer should be armed and then reset, got %d", armed)
	}
	s.Dispose()
	if s.quietTimer != nil {
		t.Errorf("Dispose should stop and clear the quiet timer")
	}
}

func Test_Foreground(t *testing.T) {
	s := New(series.NewStore(4), nil)
	if s.Foregrounded() != "" {
		t.Errorf("no entity should be foregrounded initially")
	}
	s.Foreground("gpu0")
	if s.Foregrounded() != "gpu0" {
		t.Errorf("Foregrounded() = %q, want gpu0", s.Foregrounded())
	}
	s.Foreground("gpu1") // exclusive: replaces, never adds
	if s.Foregrounded() != "gpu1" {
		t.Errorf("Foregrounded() = %q, want gpu1", s.Foregrounded())
	}
	s.Foreground("")
	if s.Foregrounded() != "" {
		t.Errorf("empty key should clear the gate")
	}
}
