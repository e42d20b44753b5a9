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

// Package rate derives per-second rates from cumulative byte
// counters. State is kept per physical source key, not per entity:
// when several entities are backed by one host, the first observation
// of a tick computes the rates and the rest reuse the cached result
// instead of each deriving a subtly different rate from noisy
// back-to-back reads. Calls landing within the coalescing window of
// the previous computation belong to the same tick.
package rate

import (
	"sync"
	"time"

	"github.com/devpulse/devpulse/telemetry"
)

// CoalesceWindow is how close together two observations must be to
// count as the same tick.
const CoalesceWindow = 50 * time.Millisecond

// Rates is one computed rate pair set, in bytes per second. Valid is
// false when no rate could be derived this tick: first observation of
// a source, non-positive time delta, missing counters, or a counter
// regression (agent restart). Rates are zero whenever Valid is false,
// a regression never shows up as a negative rate.
type Rates struct {
	NetRx     float64 `json:"netRx"`
	NetTx     float64 `json:"netTx"`
	DiskRead  float64 `json:"diskRead"`
	DiskWrite float64 `json:"diskWrite"`
	Valid     bool    `json:"valid"`
}

// Engine holds per-source counter state. The registry lock only
// covers the source map, each source has its own lock.
type Engine struct {
	l        sync.RWMutex
	coalesce time.Duration
	bySource map[string]*sourceState
}

type sourceState struct {
	sync.Mutex
	seen     bool
	counters telemetry.Counters // baseline as of observed
	observed time.Time          // time of the last new-tick observation
	rates    Rates              // result cached for the duration of the tick
}

// NewEngine returns an Engine with the given coalescing window;
// window <= 0 means CoalesceWindow.
func NewEngine(coalesce time.Duration) *Engine {
	if coalesce <= 0 {
		coalesce = CoalesceWindow
	}
	return &Engine{
		coalesce: coalesce,
		bySource: make(map[string]*sourceState),
	}
}

func (e *Engine) getOrCreate(source string) *sourceState {
	e.l.RLock()
	st := e.bySource[source]
	e.l.RUnlock()
	if st != nil {
		return st
	}

	e.l.Lock()
	defer e.l.Unlock()
	if st = e.bySource[source]; st == nil {
		st = &sourceState{}
		e.bySource[source] = st
	}
	return st
}

// Observe feeds one counter reading for a source and returns the
// rates for the current tick. A call within the coalescing window of
// the previous computation returns the cached result and mutates
// nothing. On a new tick the baseline advances to the new counters
// even when the tick is invalid, so a reset counter becomes the new
// baseline rather than poisoning every following tick.
func (e *Engine) Observe(source string, c telemetry.Counters, now time.Time) Rates {
	st := e.getOrCreate(source)

	st.Lock()
	defer st.Unlock()

	if st.seen {
		since := now.Sub(st.observed)
		if since >= 0 && since < e.coalesce {
			return st.rates
		}
	}

	r := Rates{}
	delta := now.Sub(st.observed).Seconds()
	if st.seen && delta > 0 {
		r.Valid = c.HasNet || c.HasDisk
		if c.HasNet {
			if !st.counters.HasNet ||
				c.RecvBytes < st.counters.RecvBytes || c.SentBytes < st.counters.SentBytes {
				r.Valid = false
			} else {
				r.NetRx = float64(c.RecvBytes-st.counters.RecvBytes) / delta
				r.NetTx = float64(c.SentBytes-st.counters.SentBytes) / delta
			}
		}
		if c.HasDisk {
			if !st.counters.HasDisk ||
				c.ReadBytes < st.counters.ReadBytes || c.WriteBytes < st.counters.WriteBytes {
				r.Valid = false
			} else {
				r.DiskRead = float64(c.ReadBytes-st.counters.ReadBytes) / delta
				r.DiskWrite = float64(c.WriteBytes-st.counters.WriteBytes) / delta
			}
		}
		if !r.Valid {
			r = Rates{}
		}
	}

	st.seen = true
	st.counters = c
	st.observed = now
	st.rates = r

	return r
}

// Cached returns the most recently computed rates for a source
// without advancing any state.
func (e *Engine) Cached(source string) Rates {
	e.l.RLock()
	st := e.bySource[source]
	e.l.RUnlock()
	if st == nil {
		return Rates{}
	}

	st.Lock()
	defer st.Unlock()
	return st.rates
}

// Forget drops all state for a source, e.g. on node disconnect.
func (e *Engine) Forget(source string) {
	e.l.Lock()
	defer e.l.Unlock()
	delete(e.bySource, source)
}
