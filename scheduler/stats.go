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

import "github.com/prometheus/client_golang/prometheus"

// Pipeline self-metrics. Registered on the default registry so that
// promhttp serves them without extra wiring.

var (
	ingestedSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "ingested_snapshots_total",
		Help: "Snapshots recorded by the ingest phase.",
	})
	ingestedPoints = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "ingested_points_total",
		Help: "Series points appended by the ingest phase.",
	})
	flushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "flushes_total",
		Help: "Flush batches delivered to consumers.",
	})
	suppressedFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "suppressed_flushes_total",
		Help: "Flush batches drained and discarded while the interaction gate was closed.",
	})
	flushedUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "flushed_updates_total",
		Help: "Per-entity updates applied to consumers.",
	})
	consumerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "consumer_errors_total",
		Help: "Consumer errors and panics isolated during flush.",
	})
	pendingEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "devpulse", Subsystem: "scheduler",
		Name: "pending_entries",
		Help: "Entries currently in the pending-update map.",
	})
)

func init() {
	prometheus.MustRegister(
		ingestedSnapshots,
		ingestedPoints,
		flushes,
		suppressedFlushes,
		flushedUpdates,
		consumerErrors,
		pendingEntries,
	)
}
