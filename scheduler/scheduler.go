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

// Package scheduler coordinates delivery of telemetry to consumers.
// Ingestion is unconditional and cheap: every snapshot is recorded in
// the series store (and fed to the rate engine) at full arrival
// cadence. Consumer notification is batched: pending updates
// accumulate in a last-write-wins map and are drained as one batch
// per rendering opportunity, so a burst of snapshots costs one
// consumer update, never one per arrival. While the interaction gate
// is active, batches are drained and discarded without notification;
// no history is lost because the record phase already ran.
package scheduler

import (
	"sync"
	"time"

	"github.com/devpulse/devpulse/rate"
	"github.com/devpulse/devpulse/series"
	"github.com/devpulse/devpulse/telemetry"
	xrate "golang.org/x/time/rate"
)

const (
	// TextUpdateThrottle limits how often a consumer is asked to
	// redraw text/labels for one entity, as opposed to the cheap
	// graphical trace refresh.
	TextUpdateThrottle = 1000 * time.Millisecond

	// InteractionQuietPeriod is how long after the last interaction
	// signal the gate stays closed.
	InteractionQuietPeriod = 100 * time.Millisecond

	// DefaultRenderInterval is the default cadence of rendering
	// opportunities when the internal render loop is used.
	DefaultRenderInterval = 100 * time.Millisecond
)

// reserved pending-map key for cross-entity aggregate state; NUL
// prefixed so it cannot collide with a sanitized entity key
const aggregateKey = "\x00aggregate"

type schedState int

const (
	schedIdle         schedState = iota // no pending updates
	schedAccumulating                   // >= 1 pending update, flush armed
	schedFlushing                       // pending map being drained
)

func (s schedState) String() string {
	switch s {
	case schedIdle:
		return "idle"
	case schedAccumulating:
		return "accumulating"
	case schedFlushing:
		return "flushing"
	}
	return "unknown"
}

// ChannelUpdate is the per-channel payload of an Update. Window is
// nil on summary-only updates (entity not foregrounded).
type ChannelUpdate struct {
	Window []series.Point `json:"window,omitempty"`
	Stats  series.Stats   `json:"stats"`
}

// Update is what a consumer receives for one entity of a flush
// batch: the latest known state as of flush time, never an
// intermediate snapshot that has since been superseded.
type Update struct {
	Entity           string                   `json:"entity,omitempty"`
	Aggregate        bool                     `json:"aggregate,omitempty"`
	ShouldUpdateText bool                     `json:"shouldUpdateText"`
	Detailed         bool                     `json:"detailed"`
	Channels         map[string]ChannelUpdate `json:"channels,omitempty"`
	Rates            rate.Rates               `json:"rates"`
	HasRates         bool                     `json:"hasRates,omitempty"`

	// aggregate entry only
	EntityCount int `json:"entityCount,omitempty"`
}

// A Consumer is the rendering/export side of the pipeline. Apply is
// called once per entity per flush batch, always from the flush
// goroutine. A Consumer must not block for long; an error (or panic)
// is logged and does not abort the rest of the batch.
type Consumer interface {
	Apply(*Update) error
}

type pendingUpdate struct {
	snap             *telemetry.Snapshot
	shouldUpdateText bool
	rates            rate.Rates
	hasRates         bool
	aggregate        bool
}

// Scheduler owns the series store, the rate engine and the pending
// map. The exported duration fields may be adjusted after New but
// before the first Ingest/Start.
type Scheduler struct {
	TextThrottle     time.Duration
	InteractionQuiet time.Duration
	RenderInterval   time.Duration

	store *series.Store
	rates *rate.Engine

	mu          sync.Mutex
	state       schedState
	pending     map[string]*pendingUpdate
	lastText    map[string]time.Time
	sources     map[string]string // entity -> source key
	foreground  string
	interacting bool
	lastSignal  time.Time
	quietTimer  *time.Timer

	cMu       sync.RWMutex
	consumers []Consumer

	started      bool
	stopRenderCh chan struct{}
	renderWg     sync.WaitGroup

	errLimiter *xrate.Limiter
}

// New returns a Scheduler owning the given store and engine. Nil
// arguments get defaults, which is what most callers want.
func New(store *series.Store, rates *rate.Engine) *Scheduler {
	if store == nil {
		store = series.NewStore(0)
	}
	if rates == nil {
		rates = rate.NewEngine(0)
	}
	return &Scheduler{
		TextThrottle:     TextUpdateThrottle,
		InteractionQuiet: InteractionQuietPeriod,
		RenderInterval:   DefaultRenderInterval,
		store:            store,
		rates:            rates,
		state:            schedIdle,
		pending:          make(map[string]*pendingUpdate),
		lastText:         make(map[string]time.Time),
		sources:          make(map[string]string),
		errLimiter:       xrate.NewLimiter(xrate.Limit(2), 4),
	}
}

// Store returns the series store owned by this scheduler.
func (s *Scheduler) Store() *series.Store { return s.store }

// Rates returns the rate engine owned by this scheduler.
func (s *Scheduler) Rates() *rate.Engine { return s.rates }

// Ingest records one snapshot. The record phase (series appends, rate
// observation) is unconditional and never coalesced; the pending-map
// upsert that follows is last-write-wins per entity. Ingest never
// blocks on consumer readiness and is safe to call concurrently for
// different entities.
func (s *Scheduler) Ingest(snap *telemetry.Snapshot, now time.Time) {
	if snap == nil || snap.Entity == "" {
		return
	}

	for ch, v := range snap.Fields {
		s.store.Append(snap.Entity, ch, v, now)
	}

	var (
		r        rate.Rates
		hasRates bool
	)
	if snap.Counters != nil {
		r = s.rates.Observe(snap.SourceKey(), *snap.Counters, now)
		hasRates = true
		// derived rate channels are recorded like any other series,
		// invalid ticks degrade to 0 rather than leaving a gap
		if snap.Counters.HasNet {
			s.store.Append(snap.Entity, telemetry.ChNetRx, r.NetRx, now)
			s.store.Append(snap.Entity, telemetry.ChNetTx, r.NetTx, now)
		}
		if snap.Counters.HasDisk {
			s.store.Append(snap.Entity, telemetry.ChDiskRead, r.DiskRead, now)
			s.store.Append(snap.Entity, telemetry.ChDiskWrite, r.DiskWrite, now)
		}
	}

	ingestedSnapshots.Inc()
	ingestedPoints.Add(float64(len(snap.Fields)))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[snap.Entity] = snap.SourceKey()

	shouldText := now.Sub(s.lastText[snap.Entity]) >= s.TextThrottle
	if shouldText {
		s.lastText[snap.Entity] = now
	}

	if pu := s.pending[snap.Entity]; pu != nil {
		// last write wins for the snapshot, but a text refresh that
		// is already due is not forgotten by a faster follow-up
		pu.snap = snap
		pu.shouldUpdateText = pu.shouldUpdateText || shouldText
		if hasRates {
			pu.rates, pu.hasRates = r, true
		}
	} else {
		s.pending[snap.Entity] = &pendingUpdate{
			snap:             snap,
			shouldUpdateText: shouldText,
			rates:            r,
			hasRates:         hasRates,
		}
	}

	aggText := now.Sub(s.lastText[aggregateKey]) >= s.TextThrottle
	if aggText {
		s.lastText[aggregateKey] = now
	}
	if ap := s.pending[aggregateKey]; ap != nil {
		ap.shouldUpdateText = ap.shouldUpdateText || aggText
	} else {
		s.pending[aggregateKey] = &pendingUpdate{aggregate: true, shouldUpdateText: aggText}
	}

	if s.state == schedIdle {
		s.state = schedAccumulating
	}
	pendingEntries.Set(float64(len(s.pending)))
}

// AddConsumer registers a consumer for future flush batches.
func (s *Scheduler) AddConsumer(c Consumer) {
	if c == nil {
		return
	}
	s.cMu.Lock()
	defer s.cMu.Unlock()
	s.consumers = append(s.consumers, c)
}

// RemoveConsumer unregisters a previously added consumer.
func (s *Scheduler) RemoveConsumer(c Consumer) {
	s.cMu.Lock()
	defer s.cMu.Unlock()
	for i, have := range s.consumers {
		if have == c {
			s.consumers = append(s.consumers[:i], s.consumers[i+1:]...)
			return
		}
	}
}

// RemoveEntity drops all pipeline state for an entity (e.g. on node
// disconnect). The source counter state is only forgotten once no
// other entity shares it.
func (s *Scheduler) RemoveEntity(entity string) {
	s.mu.Lock()
	src := s.sources[entity]
	delete(s.sources, entity)
	delete(s.pending, entity)
	delete(s.lastText, entity)
	if s.foreground == entity {
		s.foreground = ""
	}
	srcInUse := false
	for _, other := range s.sources {
		if other == src {
			srcInUse = true
			break
		}
	}
	s.mu.Unlock()

	s.store.Remove(entity)
	if src != "" && !srcInUse {
		s.rates.Forget(src)
	}
}
