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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/codec"
)

// PiServo is a proportional-integral servo steering DPLL_WR_FREQ from phase error
type PiServo struct {
	dev      Device
	cfg      *Config
	integral float64
	lastCmd  FrequencyCommand
}

// NewPiServo creates PiServo with zero integral
func NewPiServo(dev Device, cfg *Config) *PiServo {
	return &PiServo{dev: dev, cfg: cfg}
}

// Integral returns the accumulated integral of phase, in seconds*seconds
func (s *PiServo) Integral() float64 {
	return s.integral
}

// LastCommand returns the last command written
func (s *PiServo) LastCommand() FrequencyCommand {
	return s.lastCmd
}

// Reset discards the integral
func (s *PiServo) Reset() {
	s.integral = 0
}

// Seed sets the integral so that with zero phase the servo keeps commanding frac
func (s *PiServo) Seed(frac float64) {
	if s.cfg.Ki > 0 {
		s.integral = frac / (Polarity * s.cfg.Ki)
		return
	}
	s.integral = 0
}

// Command clamps frac to MaxPPB and encodes it
func (s *PiServo) Command(frac float64) FrequencyCommand {
	if s.cfg.MaxPPB > 0 {
		maxFrac := s.cfg.MaxPPB * 1e-9
		frac = codec.Clamp(frac, -maxFrac, maxFrac)
	}
	return FrequencyCommand{
		Fraction: frac,
		PPB:      frac * 1e9,
		Word:     codec.FractionToWord(frac),
	}
}

// Sample runs the PI law on wrapped phase (seconds) measured dt seconds
// after the previous one and writes the result to every write DPLL.
// The integral is updated even if the write fails.
func (s *PiServo) Sample(phase, dt float64) (FrequencyCommand, error) {
	s.integral += phase * dt
	cmd := s.Command(Polarity * (s.cfg.Kp*phase + s.cfg.Ki*s.integral))
	return cmd, s.write(cmd)
}

// Apply writes a one-shot command of frac, leaving the integral alone
func (s *PiServo) Apply(frac float64) (FrequencyCommand, error) {
	cmd := s.Command(frac)
	return cmd, s.write(cmd)
}

func (s *PiServo) write(cmd FrequencyCommand) error {
	s.lastCmd = cmd
	for _, dpll := range s.cfg.WriteDPLLs {
		reg := fmt.Sprintf("DPLL_Freq_Write[%d].DPLL_WR_FREQ", dpll)
		if s.cfg.DryRun {
			if s.cfg.Trace {
				log.Infof("write: %s <- %d (%.3f ppb) (dry-run)", reg, cmd.Word, cmd.PPB)
			}
			continue
		}
		if err := s.dev.WriteFrequency(dpll, cmd.Word); err != nil {
			return writeError(reg, cmd.Word, err)
		}
		if s.cfg.Trace {
			rb, err := s.dev.Frequency(dpll)
			if err != nil {
				return readError(reg, err)
			}
			log.Debugf("write: %s <- % x (%d), readback %d", reg, codec.EncodeFrequency(cmd.Word), cmd.Word, rb)
			if rb != cmd.Word {
				log.Warningf("%s readback %d differs from written %d", reg, rb, cmd.Word)
			}
		}
	}
	return nil
}
