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

package daemon

import (
	"sync"

	"github.com/google/uuid"

	"github.com/facebook/cmdiscipline/servo"
)

// Stats is an implementation of servo.StatsServer
type Stats struct {
	mux      sync.Mutex
	counters map[string]int64
	status   servo.Status
	runID    string
}

// NewStats created new instance of Stats with a fresh run id
func NewStats() *Stats {
	return &Stats{
		counters: map[string]int64{},
		runID:    uuid.NewString(),
	}
}

// RunID identifies this run in the status endpoint and sample sinks
func (s *Stats) RunID() string {
	return s.runID
}

// UpdateCounterBy will increment counter
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// GetCounters returns an map of counters
func (s *Stats) GetCounters() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// Reset all the values of counters
func (s *Stats) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.mux.Unlock()
}

// SetStatus stores the latest loop snapshot
func (s *Stats) SetStatus(st *servo.Status) {
	s.mux.Lock()
	s.status = *st
	s.mux.Unlock()
}

// RunStatus is what the root endpoint reports
type RunStatus struct {
	RunID string `json:"run_id"`
	servo.Status
}

// GetStatus returns the latest loop snapshot
func (s *Stats) GetStatus() RunStatus {
	s.mux.Lock()
	defer s.mux.Unlock()
	return RunStatus{RunID: s.runID, Status: s.status}
}
