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

package telemetry

import (
	"math"
	"testing"
)

func Test_Coerce(t *testing.T) {
	if v := Coerce(ChUtilization, math.NaN()); v != 0 {
		t.Errorf("Coerce(NaN) != 0: %v", v)
	}
	if v := Coerce(ChUtilization, math.Inf(1)); v != 0 {
		t.Errorf("Coerce(+Inf) != 0: %v", v)
	}
	if v := Coerce(ChUtilization, math.Inf(-1)); v != 0 {
		t.Errorf("Coerce(-Inf) != 0: %v", v)
	}
	if v := Coerce(ChFan, -15); v != 0 {
		t.Errorf("Coerce(fan, -15) != 0: %v", v)
	}
	if v := Coerce(ChTemperature, -15); v != -15 {
		t.Errorf("Coerce(temperature, -15) != -15: %v", v)
	}
	if v := Coerce(ChUtilization, 42.5); v != 42.5 {
		t.Errorf("Coerce(42.5) != 42.5: %v", v)
	}
}

func Test_Snapshot_SourceKey(t *testing.T) {
	s := &Snapshot{Entity: "gpu0"}
	if s.SourceKey() != "gpu0" {
		t.Errorf("SourceKey should default to entity key")
	}
	s.Source = "hostA"
	if s.SourceKey() != "hostA" {
		t.Errorf("SourceKey should prefer the source key")
	}
}

func Test_SanitizeKey(t *testing.T) {
	if s := SanitizeKey("host a/gpu 0"); s != "host_a-gpu_0" {
		t.Errorf("SanitizeKey: %q", s)
	}
	if s := SanitizeKey("gpu@0!"); s != "gpu0" {
		t.Errorf("SanitizeKey: %q", s)
	}
}
