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

// Package telemetry defines the form in which input data is expected.
// A Snapshot is not an internal representation of device state, it is
// the format in which state arrives from a transport (one snapshot per
// entity per tick) and is easy to convert to from most any monitoring
// agent payload out there.
package telemetry

import (
	"math"
	"regexp"
	"time"
)

// Channel names recognized by the pipeline. Anything else that shows
// up in Snapshot.Fields is stored under its own name just the same;
// these constants only exist so that producers and consumers agree on
// the common ones.
const (
	ChUtilization   = "utilization"
	ChTemperature   = "temperature"
	ChMemory        = "memory"
	ChMemoryTotal   = "memoryTotal"
	ChPower         = "power"
	ChPowerLimit    = "powerLimit"
	ChFan           = "fan"
	ChClockGraphics = "clockGraphics"
	ChClockSM       = "clockSM"
	ChClockMemory   = "clockMemory"
	ChPcieRx        = "pcieRx"
	ChPcieTx        = "pcieTx"
	ChLoad1         = "load1"
	ChLoad5         = "load5"
	ChLoad15        = "load15"

	// Derived from cumulative counters by the rate engine, never
	// expected in Snapshot.Fields.
	ChNetRx     = "netRx"
	ChNetTx     = "netTx"
	ChDiskRead  = "diskRead"
	ChDiskWrite = "diskWrite"
)

// NominalTick is the expected snapshot cadence. Nothing breaks if a
// source reports slower or faster, it is only used to backfill
// baseline timestamps for newly created series.
const NominalTick = 500 * time.Millisecond

// Counters holds raw cumulative byte counters as reported by a
// physical source. The Has* flags distinguish "zero" from "not
// reported" - a source that does not report disk or network counters
// must never have a rate fabricated for it.
type Counters struct {
	RecvBytes  uint64
	SentBytes  uint64
	ReadBytes  uint64
	WriteBytes uint64
	HasNet     bool
	HasDisk    bool
}

// Snapshot is one observation of one entity. Entity is the opaque
// stable key of the monitored device. Source identifies the physical
// host backing the entity; several entities (e.g. N GPUs in one
// machine) may share a source and thereby share one rate computation
// per tick. An empty Source defaults to the entity key.
type Snapshot struct {
	Entity   string
	Source   string
	Fields   map[string]float64
	Counters *Counters
}

// SourceKey returns the physical source key for counter
// deduplication.
func (s *Snapshot) SourceKey() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Entity
}

// Coerce maps malformed numeric input to 0 rather than rejecting it -
// telemetry feeds are allowed to misbehave transiently and the store
// never raises on bad values. Temperature is the only channel where
// negative readings are meaningful.
func Coerce(channel string, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 && channel != ChTemperature {
		return 0
	}
	return v
}

var (
	sanitizeRegexSpace       = regexp.MustCompile(`\s+`)
	sanitizeRegexSlash       = regexp.MustCompile(`/`)
	sanitizeRegexNonAlphaNum = regexp.MustCompile(`[^a-zA-Z_\-0-9\.:]`)
)

// SanitizeKey normalizes entity and source keys arriving over the
// wire so that they are safe to use in URLs and log lines.
func SanitizeKey(key string) string {
	key = sanitizeRegexSpace.ReplaceAllString(key, "_")
	key = sanitizeRegexSlash.ReplaceAllString(key, "-")
	return sanitizeRegexNonAlphaNum.ReplaceAllString(key, "")
}
