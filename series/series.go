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

// Package series implements the rolling per-entity per-channel time
// series store. It is a pure data structure, there is no I/O here.
// Series are bounded: appending to a full series evicts the oldest
// point, insertion and eviction happen as one unit under the entity
// lock. New channels are pre-seeded with a full window of baseline
// points so that consumers immediately see a full-width window rather
// than a sparse one.
package series

import (
	"sort"
	"sync"
	"time"

	"github.com/devpulse/devpulse/telemetry"
)

// DefaultWindowSize is W: 120 points, about a minute of history at
// the nominal 500ms tick.
const DefaultWindowSize = 120

// Point is a single (timestamp, value) pair of a series.
type Point struct {
	TimeStamp time.Time
	Value     float64
}

// A collection of bounded series kept by entity key, then channel
// name. The registry lock only covers the entity map, each entity has
// its own lock, so concurrent appends for different entities do not
// block each other.
type Store struct {
	l        sync.RWMutex
	size     int
	byEntity map[string]*entitySeries
}

type entitySeries struct {
	sync.Mutex
	byChannel map[string]*boundedSeries
}

type boundedSeries struct {
	points []Point
}

// NewStore returns a Store with the given window capacity; size <= 0
// means DefaultWindowSize.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Store{
		size:     size,
		byEntity: make(map[string]*entitySeries),
	}
}

func (s *Store) Size() int { return s.size }

// getOrCreateEntity locks and returns the per-entity series bundle.
func (s *Store) getOrCreateEntity(entity string) *entitySeries {
	s.l.RLock()
	es := s.byEntity[entity]
	s.l.RUnlock()
	if es != nil {
		return es
	}

	s.l.Lock()
	defer s.l.Unlock()
	if es = s.byEntity[entity]; es == nil {
		es = &entitySeries{byChannel: make(map[string]*boundedSeries)}
		s.byEntity[entity] = es
	}
	return es
}

func (s *Store) getEntity(entity string) *entitySeries {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.byEntity[entity]
}

// Append records a point, creating the series on first use with a
// zero-valued baseline. Malformed values are coerced, never rejected.
func (s *Store) Append(entity, channel string, value float64, ts time.Time) {
	s.AppendSeeded(entity, channel, value, 0, ts)
}

// AppendSeeded is Append with a caller-supplied baseline value used
// to pre-seed a newly created series.
func (s *Store) AppendSeeded(entity, channel string, value, seed float64, ts time.Time) {
	es := s.getOrCreateEntity(entity)

	es.Lock()
	defer es.Unlock()

	bs := es.byChannel[channel]
	if bs == nil {
		bs = newBaselineSeries(s.size, seed, ts)
		es.byChannel[channel] = bs
	}
	bs.append(Point{TimeStamp: ts, Value: telemetry.Coerce(channel, value)}, s.size)
}

// newBaselineSeries backfills size-1 points at the nominal tick
// ending just before first, so the first real append lands at the
// tail of an already full window.
func newBaselineSeries(size int, seed float64, first time.Time) *boundedSeries {
	bs := &boundedSeries{points: make([]Point, size-1, size)}
	ts := first.Add(-time.Duration(size-1) * telemetry.NominalTick)
	for i := range bs.points {
		bs.points[i] = Point{TimeStamp: ts, Value: seed}
		ts = ts.Add(telemetry.NominalTick)
	}
	return bs
}

func (bs *boundedSeries) append(p Point, size int) {
	if len(bs.points) < size {
		bs.points = append(bs.points, p)
		return
	}
	// at capacity: shift out exactly the oldest point
	copy(bs.points, bs.points[1:])
	bs.points[len(bs.points)-1] = p
}

// Window returns a copy of the current window, oldest first. Unknown
// entity or channel yields nil.
func (s *Store) Window(entity, channel string) []Point {
	es := s.getEntity(entity)
	if es == nil {
		return nil
	}

	es.Lock()
	defer es.Unlock()

	bs := es.byChannel[channel]
	if bs == nil {
		return nil
	}
	out := make([]Point, len(bs.points))
	copy(out, bs.points)
	return out
}

// Channels returns the channel names known for an entity, sorted.
func (s *Store) Channels(entity string) []string {
	es := s.getEntity(entity)
	if es == nil {
		return nil
	}

	es.Lock()
	names := make([]string, 0, len(es.byChannel))
	for name := range es.byChannel {
		names = append(names, name)
	}
	es.Unlock()

	sort.Strings(names)
	return names
}

// Entities returns all known entity keys, sorted.
func (s *Store) Entities() []string {
	s.l.RLock()
	keys := make([]string, 0, len(s.byEntity))
	for k := range s.byEntity {
		keys = append(keys, k)
	}
	s.l.RUnlock()

	sort.Strings(keys)
	return keys
}

// Remove deletes all series of an entity, e.g. on node disconnect.
// This only forgets the in-memory window, there is nothing else.
func (s *Store) Remove(entity string) {
	s.l.Lock()
	defer s.l.Unlock()
	delete(s.byEntity, entity)
}
