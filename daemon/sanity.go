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
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/codec"
	"github.com/facebook/cmdiscipline/servo"
)

// Check is a single pass/fail line of the sanity report
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// FODReport describes the FOD of one DPLL
type FODReport struct {
	DPLL int
	clockmatrix.FOD
	State clockmatrix.LockState
}

// OutputReport describes one disciplined output
type OutputReport struct {
	Output   int
	FOD      int
	FODHz    float64
	OutDiv   uint32
	OutHz    float64
	PhaseAdj int32
}

// Report is the startup sanity report
type Report struct {
	Info     clockmatrix.Info
	FODs     []FODReport
	Outputs  []OutputReport
	PhaseRaw int64
	Phase    float64
	Checks   []Check
}

// OK is true when all checks passed
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func (r *Report) check(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Sanity reads everything the servo depends on and checks it makes sense.
// Only read errors are returned, bad values end up as failed checks.
func Sanity(dev *clockmatrix.Device, cfg *servo.Config) (*Report, error) {
	r := &Report{}
	var err error
	if r.Info, err = dev.Info(); err != nil {
		return nil, fmt.Errorf("reading chip info: %w", err)
	}

	dplls := map[int]bool{cfg.MeasureDPLL: true}
	for _, out := range cfg.Outputs {
		dplls[cfg.FODMap[out]] = true
	}
	ids := make([]int, 0, len(dplls))
	for n := range dplls {
		ids = append(ids, n)
	}
	sort.Ints(ids)
	for _, n := range ids {
		fod, err := dev.FOD(n)
		if err != nil {
			return nil, fmt.Errorf("reading DPLL%d FOD: %w", n, err)
		}
		st, err := dev.LockState(n)
		if err != nil {
			return nil, fmt.Errorf("reading DPLL%d state: %w", n, err)
		}
		r.FODs = append(r.FODs, FODReport{DPLL: n, FOD: fod, State: st})
		r.check(fmt.Sprintf("DPLL%d FOD", n), fod.Hz > 0, "M=%d N=%d %.0f Hz", fod.M, fod.N, fod.Hz)
	}

	for _, out := range cfg.Outputs {
		o := OutputReport{Output: out, FOD: cfg.FODMap[out]}
		if o.FODHz, err = dev.FODFrequency(o.FOD); err != nil {
			return nil, fmt.Errorf("reading OUT%d FOD: %w", out, err)
		}
		if o.OutDiv, err = dev.OutputDivider(out); err != nil {
			return nil, fmt.Errorf("reading OUT%d divider: %w", out, err)
		}
		if o.PhaseAdj, err = dev.PhaseAdjust(out); err != nil {
			return nil, fmt.Errorf("reading OUT%d phase adjust: %w", out, err)
		}
		if o.OutDiv > 0 {
			o.OutHz = o.FODHz / float64(o.OutDiv)
		}
		r.Outputs = append(r.Outputs, o)
		r.check(fmt.Sprintf("OUT%d divider", out), o.OutDiv > 0, "OUT_DIV=%d OUT_HZ=%.6f", o.OutDiv, o.OutHz)
	}

	if r.PhaseRaw, err = dev.PhaseStatus(cfg.MeasureDPLL); err != nil {
		return nil, fmt.Errorf("reading DPLL%d phase: %w", cfg.MeasureDPLL, err)
	}
	r.Phase = codec.Wrap(codec.PhaseSeconds(r.PhaseRaw))
	ok := cfg.OutlierCap <= 0 || math.Abs(r.Phase) <= cfg.OutlierCap
	r.check(fmt.Sprintf("DPLL%d phase", cfg.MeasureDPLL), ok, "raw=%d wrapped=%.12f s", r.PhaseRaw, r.Phase)
	return r, nil
}

// Log prints the report through logrus
func (r *Report) Log() {
	log.Infof("chip firmware %s", r.Info)
	for _, f := range r.FODs {
		log.Infof("DPLL%d FOD M=%d N=%d Hz=%.3f state=%s", f.DPLL, f.M, f.N, f.Hz, f.State)
	}
	for _, o := range r.Outputs {
		log.Infof("OUT%d FOD=%d FOD_HZ=%.3f OUT_DIV=%d OUT_HZ=%.6f OUT_PHASE_ADJ=%d", o.Output, o.FOD, o.FODHz, o.OutDiv, o.OutHz, o.PhaseAdj)
	}
	log.Infof("phase raw=%d wrapped=%.12f s", r.PhaseRaw, r.Phase)
	for _, c := range r.Checks {
		if !c.OK {
			log.Warningf("sanity check %s failed: %s", c.Name, c.Detail)
		}
	}
}
