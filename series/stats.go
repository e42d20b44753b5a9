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

package series

import "math"

// Stats summarizes a window. Current is the last finite value.
type Stats struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
}

// Calculate derives stats over the finite values of a window.
// Non-finite values are excluded from aggregation (they are kept in
// storage, just not counted here). An empty or all-non-finite window
// yields the zero Stats.
func Calculate(points []Point) Stats {
	var (
		st  Stats
		sum float64
		n   int
	)
	for _, p := range points {
		v := p.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if n == 0 {
			st.Min, st.Max = v, v
		} else {
			if v < st.Min {
				st.Min = v
			}
			if v > st.Max {
				st.Max = v
			}
		}
		st.Current = v
		sum += v
		n++
	}
	if n == 0 {
		return Stats{}
	}
	st.Avg = sum / float64(n)
	return st
}

// Stats computes stats over the current window of a channel. Unknown
// entity or channel yields the zero Stats, never an error.
func (s *Store) Stats(entity, channel string) Stats {
	es := s.getEntity(entity)
	if es == nil {
		return Stats{}
	}

	es.Lock()
	defer es.Unlock()

	bs := es.byChannel[channel]
	if bs == nil {
		return Stats{}
	}
	return Calculate(bs.points)
}
