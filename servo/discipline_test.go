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
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/cmdiscipline/codec"
)

func TestMeasureSmallPhaseGoesToSlew(t *testing.T) {
	dev := newScriptDevice(repeat(0.03, 5)...)
	sched := newFakeScheduler()
	stats := newFakeStats()
	d := NewDiscipline(dev, testConfig(), sched, stats, nil)

	require.Equal(t, StateMeasure, d.State())
	require.NoError(t, d.Iterate(context.Background()))
	require.Equal(t, StateSlew, d.State())
	require.Equal(t, 0.0, d.PI().Integral())
	require.Equal(t, int64(5), stats.get(counterSamples))
	require.Len(t, sched.sleeps, 5)
	require.Equal(t, "SLEW", stats.status.State)
	require.Empty(t, dev.writes)
}

func TestMeasureLargePhaseGoesToStep(t *testing.T) {
	dev := newScriptDevice(repeat(-0.1, 5)...)
	d := NewDiscipline(dev, testConfig(), newFakeScheduler(), nil, nil)

	require.NoError(t, d.Iterate(context.Background()))
	require.Equal(t, StateStep, d.State())
	require.Equal(t, 0, d.Iteration())
}

func TestMeasureSkipsOutliers(t *testing.T) {
	cfg := testConfig()
	cfg.OutlierCap = 0.3
	dev := newScriptDevice(0.4, -0.45, 0.01, 0.01, 0.01)
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, newFakeScheduler(), stats, nil)

	require.NoError(t, d.Iterate(context.Background()))
	require.Equal(t, StateSlew, d.State())
	require.Equal(t, int64(2), stats.get(counterOutliers))
}

func TestMeasureAllOutliersAveragesZero(t *testing.T) {
	cfg := testConfig()
	cfg.OutlierCap = 0.3
	dev := newScriptDevice(repeat(0.4, 5)...)
	d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, nil)

	require.NoError(t, d.Iterate(context.Background()))
	require.Equal(t, StateSlew, d.State())
}

func TestStepHandoffToSlew(t *testing.T) {
	cfg := testConfig()
	cfg.Ki = 0.5
	phases := append(repeat(0.1, 5), 0.1, 0.001, 0.0011, 0.0012)
	dev := newScriptDevice(phases...)
	sched := newFakeScheduler()
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, sched, stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateStep, d.State())
	sched.sleeps = nil

	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())
	require.Equal(t, 1, d.Iteration())

	// drift of 1e5 ppb is clamped to max_ppb
	word := codec.FractionToWord(-1e-6)
	require.Equal(t, []string{
		"adj out=9 -1250000",
		"adj out=9 -1280000",
		"freq dpll=2 " + strconv.FormatInt(word, 10),
	}, dev.writes)
	require.InDelta(t, -2e-6, d.PI().Integral(), 1e-15)
	require.Equal(t, []time.Duration{
		SettleDelay, time.Second, time.Second, time.Second, SettleDelay,
	}, sched.sleeps)
	require.Equal(t, int64(1), stats.get(counterHandoffs))
	require.Equal(t, int64(2), stats.get(counterPhaseWrites))
	require.Equal(t, int64(1), stats.get(counterFreqWrites))
}

func TestStepStaysUntilConverged(t *testing.T) {
	cfg := testConfig()
	phases := append(repeat(0.1, 5), 0.1, 0.05, 0.05, 0.05)
	dev := newScriptDevice(phases...)
	d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Iterate(ctx))
		require.Equal(t, StateStep, d.State())
		require.Equal(t, i, d.Iteration())
	}
}

func TestStepMaxIterationsEntersSlew(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 2
	dev := newScriptDevice(0.1)
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, newFakeScheduler(), stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateStep, d.State())
	require.Equal(t, 1, d.Iteration())

	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())
	require.Equal(t, 2, d.Iteration())
	require.Equal(t, []string{
		"adj out=9 -1250000",
		"adj out=9 -2500000",
		"adj out=9 -3750000",
		"freq dpll=2 0",
	}, dev.writes)
	require.Equal(t, int64(1), stats.get(counterStepExhausted))
	require.Equal(t, int64(1), stats.get(counterHandoffs))

	// the loop keeps running in Slew
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())
}

func TestStepNoVerifySamplesExitsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.VerifySamples = 0
	dev := newScriptDevice(append(repeat(0.1, 5), 0.1)...)
	d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())
	// second step is for phase 0, so it changes nothing
	require.Equal(t, []string{
		"adj out=9 -1250000",
		"adj out=9 -1250000",
		"freq dpll=2 0",
	}, dev.writes)
}

func TestStepOutlierRetries(t *testing.T) {
	cfg := testConfig()
	dev := newScriptDevice(append(repeat(0.1, 5), 0.7)...)
	sched := newFakeScheduler()
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, sched, stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	sched.sleeps = nil
	// 0.7 wraps to -0.3, beyond the cap
	cfg.OutlierCap = 0.2
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateStep, d.State())
	require.Equal(t, 0, d.Iteration())
	require.Equal(t, []time.Duration{time.Second}, sched.sleeps)
	require.Equal(t, int64(1), stats.get(counterOutliers))
	require.Empty(t, dev.writes)
}

func TestSlewFallbackDiscardsIntegral(t *testing.T) {
	cfg := testConfig()
	cfg.Ki = 0.5
	dev := newScriptDevice(append(repeat(0.01, 5), 0.001, 0.3)...)
	sched := newFakeScheduler()
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, sched, stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())
	require.NoError(t, d.Iterate(ctx))
	require.NotEqual(t, 0.0, d.PI().Integral())
	sched.sleeps = nil

	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateStep, d.State())
	require.Equal(t, 0, d.Iteration())
	require.Equal(t, 0.0, d.PI().Integral())
	require.Empty(t, sched.sleeps)
	require.Equal(t, int64(1), stats.get(counterFallbacks))
}

func TestSlewLogsDrift(t *testing.T) {
	cfg := testConfig()
	cfg.Kp = 0.1
	cfg.MaxPPB = 0
	dev := newScriptDevice(append(repeat(0.001, 5), 0.001, 0.001+1e-7)...)
	logger := &recordLogger{}
	d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, logger)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	logger.samples = nil
	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Len(t, logger.samples, 2)
	require.True(t, math.IsNaN(logger.samples[0].DriftPPB))
	require.InDelta(t, 100.0, logger.samples[1].DriftPPB, 1e-3)
	require.Equal(t, StateSlew, logger.samples[1].State)
	require.InDelta(t, 0.1*(0.001+1e-7)*1e9, logger.samples[1].CommandPPB, 1e-3)
}

func polarityScript(p1 float64) []float64 {
	// measure, step sample, three verify samples 10 ppb apart, then the check pair
	return append(repeat(0.1, 5), 0.1, 0.001, 0.001+1e-8, 0.001+2e-8, 0.001, p1)
}

func TestPolarityFlipOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	cfg.Ki = 0.5
	dev := newScriptDevice(polarityScript(0.001 + 1e-7)...)
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, newFakeScheduler(), stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, StateSlew, d.State())

	freqWrites := []string{}
	for _, w := range dev.writes {
		if strings.HasPrefix(w, "freq") {
			freqWrites = append(freqWrites, w)
		}
	}
	require.Len(t, freqWrites, 2)
	require.Equal(t, int64(1), stats.get(counterPolarity))
	// the flipped command is positive and seeds the integral
	require.Greater(t, dev.freq[2], int64(0))
	require.InDelta(t, 10e-9/0.5, d.PI().Integral(), 1e-12)
}

func TestPolarityKeptWhenDriftImproves(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	dev := newScriptDevice(polarityScript(0.001 + 1.1e-8)...)
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, newFakeScheduler(), stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, int64(0), stats.get(counterPolarity))
	require.Less(t, dev.freq[2], int64(0))
}

func TestPolarityCheckNeedsDebug(t *testing.T) {
	cfg := testConfig()
	dev := newScriptDevice(polarityScript(0.001 + 1e-7)...)
	stats := newFakeStats()
	d := NewDiscipline(dev, cfg, newFakeScheduler(), stats, nil)
	ctx := context.Background()

	require.NoError(t, d.Iterate(ctx))
	require.NoError(t, d.Iterate(ctx))
	require.Equal(t, int64(0), stats.get(counterPolarity))
	// the check pair was not consumed
	require.Equal(t, []float64{0.001, 0.001 + 1e-7}, dev.phases)
}

func TestDryRunNoWrites(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.Debug = true
	cfg.Kp = 0.1
	dev := newScriptDevice(append(repeat(0.1, 5), 0.1, 0.001, 0.001, 0.001, 0.001, 0.3, 0.002)...)
	d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Iterate(ctx))
	}
	require.Empty(t, dev.writes)
}

func TestDeterministicRuns(t *testing.T) {
	script := append(repeat(0.08, 5),
		0.08, 0.03, 0.031, 0.0305,
		0.03, 0.0011, 0.0012, 0.0013,
		0.0014, 0.0013, -0.0002, 0.0001, 0.3, 0.01, 0.001, 0.0011, 0.0009, 0.0005,
	)
	run := func() ([]string, []State) {
		cfg := testConfig()
		cfg.Kp = 0.2
		cfg.Ki = 0.05
		dev := newScriptDevice(script...)
		d := NewDiscipline(dev, cfg, newFakeScheduler(), nil, nil)
		var states []State
		for i := 0; i < 12; i++ {
			require.NoError(t, d.Iterate(context.Background()))
			states = append(states, d.State())
		}
		return dev.writes, states
	}
	w1, s1 := run()
	w2, s2 := run()
	require.Equal(t, w1, w2)
	require.Equal(t, s1, s2)
	require.Contains(t, s1, StateStep)
	require.Contains(t, s1, StateSlew)
}

func TestRunStopsOnCancel(t *testing.T) {
	dev := newScriptDevice(0.01)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDiscipline(dev, testConfig(), newFakeScheduler(), nil, nil)
	require.ErrorIs(t, d.Run(ctx), context.Canceled)
}

func TestRunStopsOnBusError(t *testing.T) {
	dev := newScriptDevice(0.01)
	dev.readErr = errors.New("spidev gone")
	d := NewDiscipline(dev, testConfig(), newFakeScheduler(), nil, nil)
	err := d.Run(context.Background())
	var busErr *BusError
	require.ErrorAs(t, err, &busErr)
	require.ErrorIs(t, err, dev.readErr)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "MEASURE", StateMeasure.String())
	require.Equal(t, "STEP", StateStep.String())
	require.Equal(t, "SLEW", StateSlew.String())
	require.Equal(t, "UNSUPPORTED", State(42).String())
}
