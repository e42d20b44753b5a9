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
)

// Flush drains the pending map as one batch at a rendering
// opportunity. A no-op unless the scheduler is accumulating. If new
// snapshots arrive while the batch is being applied they form the
// next batch; the state goes back to accumulating rather than idle.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.state != schedAccumulating {
		s.mu.Unlock()
		return
	}
	s.state = schedFlushing
	batch := s.pending
	s.pending = make(map[string]*pendingUpdate)
	interacting := s.interacting
	foreground := s.foreground
	s.mu.Unlock()

	if interacting {
		// drain and discard: the store already has every point, so
		// suppressing notification loses nothing but paint
		suppressedFlushes.Inc()
	} else {
		s.deliver(batch, foreground)
	}

	s.mu.Lock()
	if len(s.pending) > 0 {
		s.state = schedAccumulating
	} else {
		s.state = schedIdle
	}
	pendingEntries.Set(float64(len(s.pending)))
	s.mu.Unlock()
}

func (s *Scheduler) deliver(batch map[string]*pendingUpdate, foreground string) {
	s.cMu.RLock()
	consumers := make([]Consumer, len(s.consumers))
	copy(consumers, s.consumers)
	s.cMu.RUnlock()

	flushes.Inc()
	if len(consumers) == 0 {
		return
	}

	for key, pu := range batch {
		u := s.buildUpdate(key, pu, foreground)
		for _, c := range consumers {
			s.applyOne(c, u)
		}
		flushedUpdates.Inc()
	}
}

// buildUpdate assembles the latest known state for one batch entry.
// Only the foregrounded entity carries window references; everything
// else gets the lightweight stats-only form.
func (s *Scheduler) buildUpdate(key string, pu *pendingUpdate, foreground string) *Update {
	if pu.aggregate {
		return s.buildAggregate(pu)
	}

	u := &Update{
		Entity:           key,
		ShouldUpdateText: pu.shouldUpdateText,
		Detailed:         key == foreground,
		Rates:            pu.rates,
		HasRates:         pu.hasRates,
		Channels:         make(map[string]ChannelUpdate),
	}
	for _, ch := range s.store.Channels(key) {
		cu := ChannelUpdate{Stats: s.store.Stats(key, ch)}
		if u.Detailed {
			cu.Window = s.store.Window(key, ch)
		}
		u.Channels[ch] = cu
	}
	return u
}

// buildAggregate sums the cached per-source rates into a single
// cross-cutting entry, one physical source counted once no matter how
// many entities it backs.
func (s *Scheduler) buildAggregate(pu *pendingUpdate) *Update {
	s.mu.Lock()
	srcs := make(map[string]bool, len(s.sources))
	for _, src := range s.sources {
		srcs[src] = true
	}
	entityCount := len(s.sources)
	s.mu.Unlock()

	u := &Update{
		Aggregate:        true,
		ShouldUpdateText: pu.shouldUpdateText,
		Detailed:         true,
		EntityCount:      entityCount,
	}
	for src := range srcs {
		if r := s.rates.Cached(src); r.Valid {
			u.Rates.NetRx += r.NetRx
			u.Rates.NetTx += r.NetTx
			u.Rates.DiskRead += r.DiskRead
			u.Rates.DiskWrite += r.DiskWrite
			u.Rates.Valid = true
			u.HasRates = true
		}
	}
	return u
}

// applyOne applies one update to one consumer. A panicking or erroring
// consumer is isolated: logged (throttled) and the batch continues.
func (s *Scheduler) applyOne(c Consumer, u *Update) {
	defer func() {
		if p := recover(); p != nil {
			consumerErrors.Inc()
			if s.errLimiter.Allow() {
				log.Printf("scheduler: consumer panic applying update for %q: %v", u.Entity, p)
			}
		}
	}()

	if err := c.Apply(u); err != nil {
		consumerErrors.Inc()
		if s.errLimiter.Allow() {
			log.Printf("scheduler: consumer error applying update for %q: %v", u.Entity, err)
		}
	}
}
