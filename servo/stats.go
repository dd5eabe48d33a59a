/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package servo

// StatsServer is a stats server interface
type StatsServer interface {
	// Reset atomically sets all the counters to 0
	Reset()
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
	SetStatus(st *Status)
}

// Status is a snapshot of the loop published after every iteration
type Status struct {
	State      string  `json:"state"`
	Iteration  int     `json:"iteration"`
	Phase      float64 `json:"phase"`
	CommandPPB float64 `json:"cmd_ppb"`
	Word       int64   `json:"word"`
	Integral   float64 `json:"integral"`
}

// counter names
const (
	counterSamples       = "samples"
	counterOutliers      = "outliers"
	counterSteps         = "steps"
	counterSlews         = "slews"
	counterFallbacks     = "fallbacks"
	counterHandoffs      = "handoffs"
	counterStepExhausted = "step_exhausted"
	counterPolarity      = "polarity_flips"
	counterPhaseWrites   = "phase_adjust_writes"
	counterFreqWrites    = "freq_writes"
	counterState         = "state"
	counterIteration     = "step_iteration"
	counterPhaseNS       = "phase_ns"
	counterCommandPPB    = "cmd_ppb"
)

type nopStats struct{}

func (nopStats) Reset() {}
func (nopStats) SetCounter(string, int64) {}
func (nopStats) UpdateCounterBy(string, int64) {}
func (nopStats) SetStatus(*Status) {}
