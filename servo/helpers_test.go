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

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/facebook/cmdiscipline/codec"
)

// scriptDevice replays phase readings and keeps register state in maps
type scriptDevice struct {
	phases  []float64
	fodHz   map[int]float64
	div     map[int]uint32
	adj     map[int]int32
	freq    map[int]int64
	writes  []string
	readErr error
}

func newScriptDevice(phases ...float64) *scriptDevice {
	return &scriptDevice{
		phases: phases,
		fodHz:  map[int]float64{5: 25e6, 6: 50e6},
		div:    map[int]uint32{9: 25000000, 10: 5, 11: 5},
		adj:    map[int]int32{},
		freq:   map[int]int64{},
	}
}

func toRaw(sec float64) int64 {
	return int64(math.Round(sec / codec.ITDCUnit))
}

func (d *scriptDevice) PhaseStatus(int) (int64, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	if len(d.phases) == 0 {
		return 0, errors.New("phase script exhausted")
	}
	p := d.phases[0]
	if len(d.phases) > 1 {
		d.phases = d.phases[1:]
	}
	return toRaw(p), nil
}

func (d *scriptDevice) FODFrequency(dpll int) (float64, error) {
	return d.fodHz[dpll], nil
}

func (d *scriptDevice) OutputDivider(out int) (uint32, error) {
	return d.div[out], nil
}

func (d *scriptDevice) PhaseAdjust(out int) (int32, error) {
	return d.adj[out], nil
}

func (d *scriptDevice) SetPhaseAdjust(out int, v int32) error {
	d.adj[out] = v
	d.writes = append(d.writes, fmt.Sprintf("adj out=%d %d", out, v))
	return nil
}

func (d *scriptDevice) WriteFrequency(dpll int, word int64) error {
	d.freq[dpll] = word
	d.writes = append(d.writes, fmt.Sprintf("freq dpll=%d %d", dpll, word))
	return nil
}

func (d *scriptDevice) Frequency(dpll int) (int64, error) {
	return d.freq[dpll], nil
}

// fakeScheduler advances time only when asked to sleep
type fakeScheduler struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(1700000000, 0)}
}

func (s *fakeScheduler) Now() time.Time {
	return s.now
}

func (s *fakeScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sleeps = append(s.sleeps, d)
	s.now = s.now.Add(d)
	return nil
}

type fakeStats struct {
	mux      sync.Mutex
	counters map[string]int64
	status   *Status
}

func newFakeStats() *fakeStats {
	return &fakeStats{counters: map[string]int64{}}
}

func (s *fakeStats) Reset() {
	s.mux.Lock()
	s.counters = map[string]int64{}
	s.mux.Unlock()
}

func (s *fakeStats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

func (s *fakeStats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

func (s *fakeStats) SetStatus(st *Status) {
	s.mux.Lock()
	s.status = st
	s.mux.Unlock()
}

func (s *fakeStats) get(key string) int64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.counters[key]
}

// recordLogger keeps every sample
type recordLogger struct {
	samples []LogSample
}

func (l *recordLogger) Log(s *LogSample) error {
	l.samples = append(l.samples, *s)
	return nil
}

func testConfig() *Config {
	c := DefaultConfig()
	c.Trace = false
	c.Outputs = []int{9}
	c.FODMap = map[int]int{9: 5}
	return c
}

func repeat(v float64, n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = v
	}
	return res
}
