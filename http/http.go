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

// Package http provides read-only HTTP access to the pipeline (entity
// listing, windows, stats) and the WebSocket consumer endpoint.
package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/devpulse/devpulse/scheduler"
	"github.com/devpulse/devpulse/series"
)

// jsonPoint is the wire form of a series point, times in unix
// milliseconds.
type jsonPoint struct {
	T int64   `json:"t"`
	V float64 `json:"v"`
}

type jsonSeries struct {
	Entity  string      `json:"entity"`
	Channel string      `json:"channel"`
	Points  []jsonPoint `json:"points"`
}

type jsonStats struct {
	Entity   string                  `json:"entity"`
	Channels map[string]series.Stats `json:"channels"`
}

func jsonPoints(w []series.Point) []jsonPoint {
	pts := make([]jsonPoint, len(w))
	for i, p := range w {
		pts[i] = jsonPoint{T: p.TimeStamp.UnixMilli(), V: p.Value}
	}
	return pts
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: error encoding response: %v", err)
	}
}

func PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "OK\n")
	}
}

// EntitiesHandler lists the known entity keys.
func EntitiesHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sched.Store().Entities())
	}
}

// StatsHandler returns the rolling stats of every channel of one
// entity: /stats?entity=gpu0
func StatsHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity := r.FormValue("entity")
		if entity == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "entity parameter required\n")
			return
		}
		store := sched.Store()
		chans := store.Channels(entity)
		if chans == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		out := jsonStats{Entity: entity, Channels: make(map[string]series.Stats, len(chans))}
		for _, ch := range chans {
			out.Channels[ch] = store.Stats(entity, ch)
		}
		writeJSON(w, out)
	}
}

// seriesCache memoizes marshaled window responses. An entry is reused
// only while its last point timestamp is unchanged, so a cache hit
// can never serve stale data.
type seriesCache struct {
	*lru.Cache
}

type seriesCacheEntry struct {
	lastTS time.Time
	body   []byte
}

func newSeriesCache(cap int) *seriesCache {
	c, _ := lru.New(cap)
	return &seriesCache{Cache: c}
}

func (c *seriesCache) get(key string, lastTS time.Time) []byte {
	if v, ok := c.Get(key); ok {
		if e := v.(*seriesCacheEntry); e.lastTS.Equal(lastTS) {
			return e.body
		}
	}
	return nil
}

func (c *seriesCache) put(key string, lastTS time.Time, body []byte) {
	c.Add(key, &seriesCacheEntry{lastTS: lastTS, body: body})
}

// SeriesHandler returns the rolling window of one channel:
// /series?entity=gpu0&channel=utilization
func SeriesHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	cache := newSeriesCache(1024)

	return func(w http.ResponseWriter, r *http.Request) {
		entity, channel := r.FormValue("entity"), r.FormValue("channel")
		if entity == "" || channel == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "entity and channel parameters required\n")
			return
		}

		window := sched.Store().Window(entity, channel)
		if window == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		lastTS := window[len(window)-1].TimeStamp
		key := entity + "\x00" + channel
		body := cache.get(key, lastTS)
		if body == nil {
			var err error
			body, err = json.Marshal(jsonSeries{Entity: entity, Channel: channel, Points: jsonPoints(window)})
			if err != nil {
				log.Printf("SeriesHandler: marshal error: %v", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			cache.put(key, lastTS, body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
