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

	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/codec"
)

// Stepper moves output phase by adjusting OUT_PHASE_ADJ in FOD cycles
type Stepper struct {
	dev   Device
	cfg   *Config
	sched Scheduler
}

// NewStepper creates Stepper
func NewStepper(dev Device, cfg *Config, sched Scheduler) *Stepper {
	return &Stepper{dev: dev, cfg: cfg, sched: sched}
}

// Request returns the step in seconds for a measured phase: the opposite
// of the phase, limited to MaxStep
func (s *Stepper) Request(phase float64) float64 {
	step := -phase
	if s.cfg.MaxStep > 0 {
		step = codec.Clamp(step, -s.cfg.MaxStep, s.cfg.MaxStep)
	}
	return step
}

// Step applies a phase correction for measured phase to every configured output.
// Outputs are updated one by one; if one fails the ones before it stay updated.
func (s *Stepper) Step(ctx context.Context, phase float64) ([]PhaseStepCommand, error) {
	step := s.Request(phase)
	if s.cfg.Trace {
		log.Infof("step: phase=%.9e s -> step=%.9e s", phase, step)
	}
	cmds := make([]PhaseStepCommand, 0, len(s.cfg.Outputs))
	for _, out := range s.cfg.Outputs {
		cmd, err := s.stepOutput(out, step)
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
	if err := s.sched.Sleep(ctx, SettleDelay); err != nil {
		return cmds, err
	}
	return cmds, nil
}

func (s *Stepper) stepOutput(out int, step float64) (PhaseStepCommand, error) {
	cmd := PhaseStepCommand{Seconds: step, Output: out}
	fod, ok := s.cfg.FODMap[out]
	if !ok {
		return cmd, fmt.Errorf("output %d: %w", out, ErrUnmappedOutput)
	}
	cmd.FOD = fod
	hz, err := s.dev.FODFrequency(fod)
	if err != nil {
		return cmd, readError(fmt.Sprintf("DPLL_Ctrl[%d].FOD_FREQ", fod), err)
	}
	if hz <= 0 {
		return cmd, fmt.Errorf("output %d uses DPLL%d FOD: %w (%v Hz)", out, fod, ErrBadFOD, hz)
	}
	cmd.FODHz = hz
	cmd.Cycles = int64(codec.ClampInt32(int64(math.Round(step * hz))))

	if cmd.OutDiv, err = s.dev.OutputDivider(out); err != nil {
		return cmd, readError(fmt.Sprintf("Output[%d].OUT_DIV", out), err)
	}
	if cmd.Old, err = s.dev.PhaseAdjust(out); err != nil {
		return cmd, readError(fmt.Sprintf("Output[%d].OUT_PHASE_ADJ", out), err)
	}
	cmd.New = codec.ClampInt32(int64(cmd.Old) + cmd.Cycles)

	if s.cfg.Trace {
		outHz := 0.0
		if cmd.OutDiv > 0 {
			outHz = hz / float64(cmd.OutDiv)
		}
		log.Infof("step: OUT%d uses DPLL%d FOD fod_hz=%.6f t_fod=%.9e", out, fod, hz, 1/hz)
		log.Infof("step: OUT%d div=%d out_hz=%.6f old_adj=%d new_adj=%d (delta=%d)", out, cmd.OutDiv, outHz, cmd.Old, cmd.New, cmd.Cycles)
	}
	if s.cfg.DryRun {
		if s.cfg.Trace {
			log.Infof("write: Output[%d].OUT_PHASE_ADJ <- %d (dry-run)", out, cmd.New)
		}
		return cmd, nil
	}
	if err := s.dev.SetPhaseAdjust(out, cmd.New); err != nil {
		return cmd, writeError(fmt.Sprintf("Output[%d].OUT_PHASE_ADJ", out), int64(cmd.New), err)
	}
	if s.cfg.Trace {
		rb, err := s.dev.PhaseAdjust(out)
		if err != nil {
			return cmd, readError(fmt.Sprintf("Output[%d].OUT_PHASE_ADJ", out), err)
		}
		log.Infof("write: Output[%d].OUT_PHASE_ADJ <- % x (%d), readback %d", out, codec.EncodePhaseAdjust(cmd.New), cmd.New, rb)
		if rb != cmd.New {
			log.Warningf("Output[%d].OUT_PHASE_ADJ readback %d differs from written %d", out, rb, cmd.New)
		}
	}
	return cmd, nil
}
