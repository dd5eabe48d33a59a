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

package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/codec"
	"github.com/facebook/cmdiscipline/servo"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

func newTestPlant(cfg Config) (*Plant, *testClock) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	p := New(cfg)
	p.SetClock(clock.Now)
	return p, clock
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.NoiseRMS = 0
	return cfg
}

func TestPlantPreload(t *testing.T) {
	p, _ := newTestPlant(quietConfig())
	dev := clockmatrix.NewDevice(p)

	hz, err := dev.FODFrequency(6)
	require.NoError(t, err)
	require.Equal(t, 5e8, hz)
	div, err := dev.OutputDivider(9)
	require.NoError(t, err)
	require.Equal(t, uint32(500000000), div)
	st, err := dev.LockState(5)
	require.NoError(t, err)
	require.Equal(t, clockmatrix.LockStateLocked, st)
}

func TestPlantPhaseDrifts(t *testing.T) {
	p, clock := newTestPlant(quietConfig())
	dev := clockmatrix.NewDevice(p)

	raw, err := dev.PhaseStatus(5)
	require.NoError(t, err)
	require.InDelta(t, 0.2, codec.PhaseSeconds(raw), 1e-10)

	clock.now = clock.now.Add(10 * time.Second)
	raw, err = dev.PhaseStatus(5)
	require.NoError(t, err)
	require.InDelta(t, 0.2+500e-9, codec.PhaseSeconds(raw), 1e-10)

	// commanding the offset stops the drift
	require.NoError(t, dev.WriteFrequency(2, codec.PPBToWord(50)))
	clock.now = clock.now.Add(10 * time.Second)
	require.InDelta(t, 0.2+500e-9, p.Phase(), 1e-12)
}

func TestPlantPhaseAdjust(t *testing.T) {
	p, _ := newTestPlant(quietConfig())
	dev := clockmatrix.NewDevice(p)

	// 0.05s at 500MHz
	require.NoError(t, dev.SetPhaseAdjust(9, -25000000))
	require.InDelta(t, 0.15, p.Phase(), 1e-12)
	require.NoError(t, dev.SetPhaseAdjust(9, -50000000))
	require.InDelta(t, 0.1, p.Phase(), 1e-12)

	// other outputs do not move the measured phase
	require.NoError(t, dev.SetPhaseAdjust(10, 12345))
	require.InDelta(t, 0.1, p.Phase(), 1e-12)
}

func TestPlantWrapsMeasurement(t *testing.T) {
	cfg := quietConfig()
	cfg.InitialPhase = 0.7
	p, _ := newTestPlant(cfg)
	dev := clockmatrix.NewDevice(p)
	raw, err := dev.PhaseStatus(5)
	require.NoError(t, err)
	require.InDelta(t, -0.3, codec.PhaseSeconds(raw), 1e-10)
}

// flipStats counts servo counters, ignoring status snapshots
type flipStats struct {
	counters map[string]int64
}

func (s *flipStats) Reset() { s.counters = map[string]int64{} }
func (s *flipStats) SetCounter(key string, val int64) { s.counters[key] = val }
func (s *flipStats) UpdateCounterBy(key string, cnt int64) { s.counters[key] += cnt }
func (s *flipStats) SetStatus(*servo.Status) {}

func TestDisciplinePolarityCheckFlipsSeed(t *testing.T) {
	p, clock := newTestPlant(quietConfig())
	cfg := servo.DefaultConfig()
	cfg.Trace = false
	cfg.Debug = true
	cfg.Outputs = []int{9}
	cfg.FODMap = map[int]int{9: 5}
	cfg.Kp = 0.3
	cfg.Ki = 0.02
	require.NoError(t, cfg.Validate())

	stats := &flipStats{counters: map[string]int64{}}
	d := servo.NewDiscipline(clockmatrix.NewDevice(p), cfg, clock, stats, nil)
	ctx := context.Background()
	for i := 0; i < 50 && d.State() != servo.StateSlew; i++ {
		require.NoError(t, d.Iterate(ctx))
	}
	require.Equal(t, servo.StateSlew, d.State())
	// the -50 ppb seed doubled the drift and was flipped to cancel the offset
	require.Equal(t, int64(1), stats.counters["polarity_flips"])
	require.InDelta(t, 50.0, d.PI().LastCommand().PPB, 1.0)
	require.InDelta(t, 50e-9/cfg.Ki, d.PI().Integral(), 1e-7)
	require.Less(t, math.Abs(p.Phase()), 1e-6)
}

func TestDisciplineConverges(t *testing.T) {
	p, clock := newTestPlant(quietConfig())
	cfg := servo.DefaultConfig()
	cfg.Trace = false
	cfg.Outputs = []int{9}
	cfg.FODMap = map[int]int{9: 5}
	cfg.Kp = 0.3
	cfg.Ki = 0.02
	require.NoError(t, cfg.Validate())

	d := servo.NewDiscipline(clockmatrix.NewDevice(p), cfg, clock, nil, nil)
	ctx := context.Background()
	var seen []servo.State
	for i := 0; i < 300; i++ {
		require.NoError(t, d.Iterate(ctx))
		seen = append(seen, d.State())
	}
	require.Equal(t, servo.StateStep, seen[0])
	require.Equal(t, servo.StateSlew, d.State())
	require.Less(t, math.Abs(p.Phase()), 1e-9)
	require.InDelta(t, 50.0, d.PI().LastCommand().PPB, 1.0)
}
