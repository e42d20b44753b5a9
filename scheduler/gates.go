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

import "time"

// The interaction gate and the visibility gate. Both only suppress
// consumer notification, never data capture: ingestion does not
// consult them.

// InteractionSignal marks the start or continuation of a user
// interaction burst (e.g. scrolling). The gate closes and stays
// closed until no signal has arrived for the quiet period.
func (s *Scheduler) InteractionSignal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interacting = true
	s.lastSignal = time.Now()
	if s.quietTimer == nil {
		s.quietTimer = timeAfterFunc(s.InteractionQuiet, s.interactionExpired)
	} else {
		s.quietTimer.Reset(s.InteractionQuiet)
	}
}

func (s *Scheduler) interactionExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reset can lose the race against a timer that already fired: the
	// queued expiry then lands right after a fresh signal. An expiry
	// inside the quiet period of the last signal is stale.
	if time.Since(s.lastSignal) >= s.InteractionQuiet {
		s.interacting = false
	}
}

// Interacting reports whether the interaction gate is currently
// closed.
func (s *Scheduler) Interacting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interacting
}

// Foreground marks the single entity whose detailed view is active;
// all other entities get summary-only updates. An empty key means no
// entity is foregrounded.
func (s *Scheduler) Foreground(entity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = entity
}

// Foregrounded returns the currently foregrounded entity key.
func (s *Scheduler) Foregrounded() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground
}
