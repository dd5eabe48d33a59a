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
	"fmt"
	"math"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/codec"
)

// Discipline runs the servo state machine. It owns the state, the step
// iteration counter, the integral (through PiServo) and the previous sample.
type Discipline struct {
	cfg      *Config
	sched    Scheduler
	stats    StatsServer
	logger   Logger
	measurer *Measurer
	stepper  *Stepper
	pi       *PiServo

	state     State
	iteration int
	prevPhase float64
	havePrev  bool
	start     time.Time
}

// NewDiscipline creates Discipline in Measure state. stats and logger may be nil.
func NewDiscipline(dev Device, cfg *Config, sched Scheduler, stats StatsServer, logger Logger) *Discipline {
	if stats == nil {
		stats = nopStats{}
	}
	return &Discipline{
		cfg:      cfg,
		sched:    sched,
		stats:    stats,
		logger:   logger,
		measurer: NewMeasurer(dev, cfg),
		stepper:  NewStepper(dev, cfg, sched),
		pi:       NewPiServo(dev, cfg),
		state:    StateMeasure,
	}
}

// State returns current state
func (d *Discipline) State() State {
	return d.state
}

// Iteration returns the number of Step iterations since Step was entered
func (d *Discipline) Iteration() int {
	return d.iteration
}

// PI returns the slew actuator
func (d *Discipline) PI() *PiServo {
	return d.pi
}

// Run runs the loop until ctx is cancelled or a register access fails
func (d *Discipline) Run(ctx context.Context) error {
	d.start = d.sched.Now()
	log.Infof("starting servo: measure DPLL%d, write DPLLs %v, outputs %v, interval %v, dry-run %v",
		d.cfg.MeasureDPLL, d.cfg.WriteDPLLs, d.cfg.Outputs, d.cfg.Interval, d.cfg.DryRun)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Iterate(ctx); err != nil {
			return err
		}
	}
}

// Iterate runs a single pass of the loop: the whole measurement window in
// Measure, one step plus verification in Step, one PI update in Slew
func (d *Discipline) Iterate(ctx context.Context) error {
	if d.start.IsZero() {
		d.start = d.sched.Now()
	}
	if d.state == StateMeasure {
		return d.measure(ctx)
	}
	s, err := d.measurer.Sample()
	if err != nil {
		return err
	}
	d.stats.UpdateCounterBy(counterSamples, 1)
	if s.Outlier {
		d.stats.UpdateCounterBy(counterOutliers, 1)
		log.Debugf("drop sample |phase|=%.3f s", math.Abs(s.Wrapped))
		d.log(&s, math.NaN(), FrequencyCommand{})
		return d.sleep(ctx)
	}
	if d.state == StateStep {
		return d.step(ctx, s)
	}
	return d.slew(ctx, s)
}

func (d *Discipline) sleep(ctx context.Context) error {
	return d.sched.Sleep(ctx, d.cfg.Interval)
}

func (d *Discipline) trace(format string, args ...any) {
	if d.cfg.Trace {
		log.Infof(format, args...)
	}
}

func (d *Discipline) setState(s State) {
	if s != d.state {
		log.Infof("servo state %s -> %s", d.state, s)
	}
	d.state = s
	d.stats.SetCounter(counterState, int64(s))
}

func (d *Discipline) enterStep() {
	d.setState(StateStep)
	d.iteration = 0
	d.stats.SetCounter(counterIteration, 0)
}

func (d *Discipline) enterSlew() {
	d.setState(StateSlew)
	d.havePrev = false
}

// measure averages non-outlier samples over the measurement window
func (d *Discipline) measure(ctx context.Context) error {
	start := d.sched.Now()
	w := welford.New()
	sum := 0.0
	n := 0
	for d.sched.Now().Sub(start) < d.cfg.MeasureWindow {
		s, err := d.measurer.Sample()
		if err != nil {
			return err
		}
		d.stats.UpdateCounterBy(counterSamples, 1)
		verdict := "KEEP"
		if s.Outlier {
			verdict = "DROP"
			d.stats.UpdateCounterBy(counterOutliers, 1)
		} else {
			sum += s.Wrapped
			w.Add(s.Wrapped)
			n++
		}
		d.trace("measure: t=%.3f raw=%.9e s wrap=%.9e s %s", d.sched.Now().Sub(start).Seconds(), s.Seconds, s.Wrapped, verdict)
		d.log(&s, math.NaN(), FrequencyCommand{})
		if err := d.sleep(ctx); err != nil {
			return err
		}
	}
	avg := 0.0
	stddev := 0.0
	if n > 0 {
		avg = sum / float64(n)
		stddev = w.Stddev()
	}
	d.trace("measure: samples=%d avg_phase=%.9e s stddev=%.3e s", n, avg, stddev)
	if math.Abs(avg) > d.cfg.EnterThreshold {
		d.trace("measure: |avg_phase|=%.9e > enter=%.9e -> STEP", math.Abs(avg), d.cfg.EnterThreshold)
		d.enterStep()
		d.publish(avg, FrequencyCommand{})
		return nil
	}
	d.trace("measure: |avg_phase|=%.9e <= enter=%.9e -> SLEW", math.Abs(avg), d.cfg.EnterThreshold)
	d.pi.Reset()
	d.enterSlew()
	d.publish(avg, FrequencyCommand{})
	return nil
}

// verify samples VerifySamples times after a step, returning the last
// wrapped phase and the average drift between consecutive samples
func (d *Discipline) verify(ctx context.Context) (last float64, avgDrift float64, pairs int, err error) {
	interval := d.cfg.IntervalSeconds()
	w := welford.New()
	sum := 0.0
	prev := 0.0
	for k := 0; k < d.cfg.VerifySamples; k++ {
		s, err := d.measurer.Sample()
		if err != nil {
			return 0, 0, 0, err
		}
		d.stats.UpdateCounterBy(counterSamples, 1)
		last = s.Wrapped
		if k > 0 {
			drift := driftPPB(prev, s.Wrapped, interval)
			sum += drift
			w.Add(drift)
			pairs++
			d.trace("step: verify[%d] phase=%.9e s dphi=%.9e s drift=%.3f ppb", k, s.Wrapped, codec.Wrap(s.Wrapped-prev), drift)
		} else {
			d.trace("step: verify[%d] phase=%.9e s", k, s.Wrapped)
		}
		prev = s.Wrapped
		if err := d.sleep(ctx); err != nil {
			return 0, 0, 0, err
		}
	}
	if pairs > 0 {
		avgDrift = sum / float64(pairs)
		d.trace("step: verify drift avg=%.3f ppb stddev=%.3f ppb", avgDrift, w.Stddev())
	}
	return last, avgDrift, pairs, nil
}

func (d *Discipline) step(ctx context.Context, s PhaseSample) error {
	cmds, err := d.stepper.Step(ctx, s.Wrapped)
	if err != nil {
		return err
	}
	d.stats.UpdateCounterBy(counterSteps, 1)
	if !d.cfg.DryRun {
		d.stats.UpdateCounterBy(counterPhaseWrites, int64(len(cmds)))
	}
	last, avgDrift, pairs, err := d.verify(ctx)
	if err != nil {
		return err
	}
	d.iteration++
	d.stats.SetCounter(counterIteration, int64(d.iteration))
	d.log(&s, math.NaN(), FrequencyCommand{})
	if math.Abs(last) <= d.cfg.ExitThreshold {
		return d.handoff(ctx, last, avgDrift, pairs)
	}
	if d.cfg.MaxIterations > 0 && d.iteration >= d.cfg.MaxIterations {
		log.Warningf("step: no convergence after %d iterations (last phase %.9e s), entering SLEW anyway", d.iteration, last)
		d.stats.UpdateCounterBy(counterStepExhausted, 1)
		return d.handoff(ctx, last, avgDrift, pairs)
	}
	return nil
}

// handoff applies the final phase correction and an initial frequency that
// cancels the drift seen during verification, then seeds the integral and enters Slew
func (d *Discipline) handoff(ctx context.Context, last, avgDrift float64, pairs int) error {
	d.trace("step: within exit threshold (|phase|<=%.3e), applying phase+freq and entering SLEW", d.cfg.ExitThreshold)
	d.trace("step: exit phase=%.9e s, avg drift=%.3f ppb (from %d diffs)", last, avgDrift, pairs)
	cmds, err := d.stepper.Step(ctx, last)
	if err != nil {
		return err
	}
	if !d.cfg.DryRun {
		d.stats.UpdateCounterBy(counterPhaseWrites, int64(len(cmds)))
	}

	cmd, err := d.pi.Apply(-avgDrift * 1e-9)
	if err != nil {
		return err
	}
	d.countFreqWrite()
	d.trace("step->slew: init WR_FREQ cmd=%.3f ppb word=%d (0x%016x)", cmd.PPB, cmd.Word, uint64(cmd.Word))

	if !d.cfg.DryRun && d.cfg.Debug && d.cfg.Interval > 0 && pairs >= 2 {
		if cmd, err = d.checkPolarity(ctx, cmd, avgDrift); err != nil {
			return err
		}
	}

	d.pi.Seed(cmd.Fraction)
	d.stats.UpdateCounterBy(counterHandoffs, 1)
	d.enterSlew()
	d.publish(last, cmd)
	return nil
}

// checkPolarity measures the drift after the initial command. If it got
// worse than before by more than PolarityCheckRatio the command sign is flipped, once.
func (d *Discipline) checkPolarity(ctx context.Context, cmd FrequencyCommand, avgDrift float64) (FrequencyCommand, error) {
	p0, err := d.measurer.Sample()
	if err != nil {
		return cmd, err
	}
	if err := d.sleep(ctx); err != nil {
		return cmd, err
	}
	p1, err := d.measurer.Sample()
	if err != nil {
		return cmd, err
	}
	drift := driftPPB(p0.Wrapped, p1.Wrapped, d.cfg.IntervalSeconds())
	log.Debugf("step->slew: post-WR_FREQ drift check: p0=%.9e p1=%.9e drift=%.3f ppb (pre avg drift=%.3f)",
		p0.Wrapped, p1.Wrapped, drift, avgDrift)
	if math.Abs(drift) <= math.Abs(avgDrift)*PolarityCheckRatio {
		return cmd, nil
	}
	flipped, err := d.pi.Apply(-cmd.Fraction)
	if err != nil {
		return flipped, err
	}
	d.countFreqWrite()
	d.stats.UpdateCounterBy(counterPolarity, 1)
	log.Warningf("step->slew: drift got worse; flipping init WR_FREQ sign -> cmd=%.3f ppb word=%d (0x%016x)",
		flipped.PPB, flipped.Word, uint64(flipped.Word))
	return flipped, nil
}

func (d *Discipline) slew(ctx context.Context, s PhaseSample) error {
	if math.Abs(s.Wrapped) > d.cfg.FallbackThreshold {
		d.trace("slew: |phase|=%.6f exceeds fallback %.6f -> STEP", math.Abs(s.Wrapped), d.cfg.FallbackThreshold)
		d.stats.UpdateCounterBy(counterFallbacks, 1)
		d.pi.Reset()
		d.enterStep()
		return nil
	}
	drift := math.NaN()
	if d.havePrev {
		drift = driftPPB(d.prevPhase, s.Wrapped, d.cfg.IntervalSeconds())
	}
	d.prevPhase = s.Wrapped
	d.havePrev = true

	cmd, err := d.pi.Sample(s.Wrapped, d.cfg.IntervalSeconds())
	if err != nil {
		return err
	}
	d.countFreqWrite()
	d.stats.UpdateCounterBy(counterSlews, 1)
	dry := ""
	if d.cfg.DryRun {
		dry = " (dry-run)"
	}
	driftStr := "nan"
	if !math.IsNaN(drift) {
		driftStr = fmt.Sprintf("%.3fppb", drift)
	}
	d.trace("t=%.3f SLEW phase_raw=%.9e phase=%.9e drift=%s cmd=%.3fppb word=%d%s",
		d.sched.Now().Sub(d.start).Seconds(), s.Seconds, s.Wrapped, driftStr, cmd.PPB, cmd.Word, dry)
	d.publish(s.Wrapped, cmd)
	d.log(&s, drift, cmd)
	return d.sleep(ctx)
}

func (d *Discipline) countFreqWrite() {
	if !d.cfg.DryRun {
		d.stats.UpdateCounterBy(counterFreqWrites, int64(len(d.cfg.WriteDPLLs)))
	}
}

func (d *Discipline) publish(phase float64, cmd FrequencyCommand) {
	d.stats.SetCounter(counterPhaseNS, int64(phase*1e9))
	d.stats.SetCounter(counterCommandPPB, int64(cmd.PPB))
	d.stats.SetStatus(&Status{
		State:      d.state.String(),
		Iteration:  d.iteration,
		Phase:      phase,
		CommandPPB: cmd.PPB,
		Word:       cmd.Word,
		Integral:   d.pi.Integral(),
	})
}

func (d *Discipline) log(s *PhaseSample, drift float64, cmd FrequencyCommand) {
	if d.logger == nil {
		return
	}
	err := d.logger.Log(&LogSample{
		Time:       d.sched.Now(),
		State:      d.state,
		Iteration:  d.iteration,
		Raw:        s.Raw,
		PhaseRaw:   s.Seconds,
		Phase:      s.Wrapped,
		Outlier:    s.Outlier,
		DriftPPB:   drift,
		CommandPPB: cmd.PPB,
		Word:       cmd.Word,
		Integral:   d.pi.Integral(),
	})
	if err != nil {
		log.Errorf("failed to log sample: %v", err)
	}
}
