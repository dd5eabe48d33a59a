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

// Package servo implements the three-state loop that disciplines a ClockMatrix DPLL:
// Measure on startup, then coarse phase Step or PI frequency Slew.
package servo

import (
	"errors"
	"fmt"
)

// State is the servo state
type State uint8

// All the states of servo
const (
	StateMeasure State = 0
	StateStep    State = 1
	StateSlew    State = 2
)

func (s State) String() string {
	switch s {
	case StateMeasure:
		return "MEASURE"
	case StateStep:
		return "STEP"
	case StateSlew:
		return "SLEW"
	}
	return "UNSUPPORTED"
}

// Polarity is the sign applied to the PI command. Measurement inversion is
// configured separately and applied at sampling time.
const Polarity = 1.0

// PolarityCheckRatio is how much worse the post hand-off drift must be to flip the initial command
const PolarityCheckRatio = 1.20

// Device is the subset of the chip the servo needs
type Device interface {
	PhaseStatus(dpll int) (int64, error)
	FODFrequency(dpll int) (float64, error)
	OutputDivider(out int) (uint32, error)
	PhaseAdjust(out int) (int32, error)
	SetPhaseAdjust(out int, v int32) error
	WriteFrequency(dpll int, word int64) error
	Frequency(dpll int) (int64, error)
}

// PhaseSample is a single phase measurement
type PhaseSample struct {
	Raw     int64
	Seconds float64
	Wrapped float64
	Outlier bool
}

// FrequencyCommand is a fractional frequency offset and its DPLL_WR_FREQ encoding
type FrequencyCommand struct {
	Fraction float64
	PPB      float64
	Word     int64
}

// PhaseStepCommand describes one OUT_PHASE_ADJ update
type PhaseStepCommand struct {
	Seconds float64
	Output  int
	FOD     int
	FODHz   float64
	OutDiv  uint32
	Cycles  int64
	Old     int32
	New     int32
}

// Errors
var (
	ErrUnmappedOutput = errors.New("output has no FOD mapping")
	ErrBadFOD         = errors.New("FOD frequency is not positive")
)

// BusError is a failed register access. It is fatal for the loop.
type BusError struct {
	Op       string
	Register string
	Value    int64
	Err      error
}

func (e *BusError) Error() string {
	if e.Op == "write" {
		return fmt.Sprintf("%s %s (value %d): %v", e.Op, e.Register, e.Value, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Register, e.Err)
}

// Unwrap returns the underlying error
func (e *BusError) Unwrap() error {
	return e.Err
}

func readError(reg string, err error) error {
	return &BusError{Op: "read", Register: reg, Err: err}
}

func writeError(reg string, v int64, err error) error {
	return &BusError{Op: "write", Register: reg, Value: v, Err: err}
}
