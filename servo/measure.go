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
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/facebook/cmdiscipline/codec"
)

// Measurer samples DPLLn_PHASE_STATUS of the measurement channel
type Measurer struct {
	dev  Device
	cfg  *Config
	reg  string
	warn *rate.Limiter
}

// NewMeasurer creates Measurer
func NewMeasurer(dev Device, cfg *Config) *Measurer {
	return &Measurer{
		dev:  dev,
		cfg:  cfg,
		reg:  fmt.Sprintf("DPLL%d_PHASE_STATUS", cfg.MeasureDPLL),
		warn: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// Sample reads, decodes, inverts and wraps one phase measurement.
// Outliers are returned marked, the caller decides what to do with them.
func (m *Measurer) Sample() (PhaseSample, error) {
	raw, err := m.dev.PhaseStatus(m.cfg.MeasureDPLL)
	if err != nil {
		return PhaseSample{}, readError(m.reg, err)
	}
	s := PhaseSample{
		Raw:     raw,
		Seconds: codec.PhaseSeconds(raw),
	}
	if m.cfg.Invert {
		s.Seconds = -s.Seconds
	}
	s.Wrapped = codec.Wrap(s.Seconds)
	s.Outlier = m.IsOutlier(s.Wrapped)
	if s.Outlier && m.warn.Allow() {
		log.Warningf("dropping outlier phase %.9e s (cap %.3e s)", s.Wrapped, m.cfg.OutlierCap)
	}
	return s, nil
}

// IsOutlier reports whether wrapped phase p is beyond the outlier cap
func (m *Measurer) IsOutlier(p float64) bool {
	return m.cfg.OutlierCap > 0 && math.Abs(p) > m.cfg.OutlierCap
}

// driftPPB is the phase slope between two consecutive wrapped samples
func driftPPB(prev, cur, interval float64) float64 {
	if interval <= 0 {
		return 0
	}
	return codec.Wrap(cur-prev) / interval * 1e9
}
