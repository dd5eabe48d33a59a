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
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// Scheduler kinds
const (
	SchedulerSleep    = "sleep"
	SchedulerDeadline = "deadline"
)

// SettleDelay is how long to wait after phase adjust writes before sampling again
const SettleDelay = 200 * time.Millisecond

var validate = validator.New()

// Config is the servo configuration. It is immutable for the run.
type Config struct {
	MeasureDPLL       int           `yaml:"measure_dpll" validate:"gte=0,lt=8"`
	WriteDPLLs        []int         `yaml:"write_dplls" validate:"min=1,dive,gte=0,lt=8"`
	Outputs           []int         `yaml:"outputs" validate:"min=1,dive,gte=0,lt=12"`
	FODMap            map[int]int   `yaml:"fod_map" validate:"dive,keys,gte=0,lt=12,endkeys,gte=0,lt=8"`
	Interval          time.Duration `yaml:"interval"`
	MeasureWindow     time.Duration `yaml:"measure_window"`
	Invert            bool          `yaml:"invert"`
	EnterThreshold    float64       `yaml:"enter_threshold"`
	ExitThreshold     float64       `yaml:"exit_threshold"`
	FallbackThreshold float64       `yaml:"fallback_threshold"`
	MaxStep           float64       `yaml:"max_step"`
	MaxIterations     int           `yaml:"max_iterations" validate:"gte=0"`
	VerifySamples     int           `yaml:"verify_samples" validate:"gte=0"`
	Kp                float64       `yaml:"kp"`
	Ki                float64       `yaml:"ki"`
	MaxPPB            float64       `yaml:"max_ppb"`
	OutlierCap        float64       `yaml:"outlier_cap"`
	DryRun            bool          `yaml:"dry_run"`
	Trace             bool          `yaml:"trace"`
	Debug             bool          `yaml:"debug"`
	Scheduler         string        `yaml:"scheduler" validate:"oneof=sleep deadline"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		MeasureDPLL:       5,
		WriteDPLLs:        []int{2},
		Outputs:           []int{9, 10, 11},
		FODMap:            map[int]int{9: 5, 10: 6, 11: 6},
		Interval:          time.Second,
		MeasureWindow:     5 * time.Second,
		EnterThreshold:    0.05,
		ExitThreshold:     0.002,
		FallbackThreshold: 0.25,
		MaxStep:           0.05,
		VerifySamples:     3,
		MaxPPB:            1000,
		OutlierCap:        0.5,
		Trace:             true,
		Scheduler:         SchedulerSleep,
	}
}

// Sanitize replaces unusable values with defaults, logging every change
func (c *Config) Sanitize() {
	def := DefaultConfig()
	if c.Interval <= 0 {
		log.Warningf("interval %v is not positive, using %v", c.Interval, def.Interval)
		c.Interval = def.Interval
	}
	if c.MeasureWindow < c.Interval {
		log.Warningf("measure window %v is shorter than interval, using %v", c.MeasureWindow, c.Interval)
		c.MeasureWindow = c.Interval
	}
	if len(c.WriteDPLLs) == 0 {
		log.Warningf("no write DPLLs configured, using %v", def.WriteDPLLs)
		c.WriteDPLLs = def.WriteDPLLs
	}
	if len(c.Outputs) == 0 {
		log.Warningf("no outputs configured, using %v", def.Outputs)
		c.Outputs = def.Outputs
	}
	if len(c.FODMap) == 0 {
		log.Warningf("no FOD map configured, using %v", def.FODMap)
		c.FODMap = def.FODMap
	}
	if c.Scheduler == "" {
		c.Scheduler = SchedulerSleep
	}
	c.sanitizeThresholds(def)
	clampNegative("max_step", &c.MaxStep)
	clampNegative("kp", &c.Kp)
	clampNegative("ki", &c.Ki)
	clampNegative("max_ppb", &c.MaxPPB)
	clampNegative("outlier_cap", &c.OutlierCap)
}

// sanitizeThresholds keeps exit < enter <= fallback with all three positive
func (c *Config) sanitizeThresholds(def *Config) {
	if !(c.EnterThreshold > 0) {
		log.Warningf("enter_threshold %v is not positive, using %v", c.EnterThreshold, def.EnterThreshold)
		c.EnterThreshold = def.EnterThreshold
	}
	if !(c.ExitThreshold > 0) {
		log.Warningf("exit_threshold %v is not positive, using %v", c.ExitThreshold, def.ExitThreshold)
		c.ExitThreshold = def.ExitThreshold
	}
	if c.ExitThreshold >= c.EnterThreshold {
		exit := def.ExitThreshold
		if exit >= c.EnterThreshold {
			exit = c.EnterThreshold / 2
		}
		log.Warningf("exit_threshold %v is not smaller than enter_threshold %v, using %v", c.ExitThreshold, c.EnterThreshold, exit)
		c.ExitThreshold = exit
	}
	if !(c.FallbackThreshold > 0) {
		log.Warningf("fallback_threshold %v is not positive, using %v", c.FallbackThreshold, def.FallbackThreshold)
		c.FallbackThreshold = def.FallbackThreshold
	}
	if c.FallbackThreshold < c.EnterThreshold {
		log.Warningf("fallback_threshold %v is smaller than enter_threshold %v, using %v", c.FallbackThreshold, c.EnterThreshold, c.EnterThreshold)
		c.FallbackThreshold = c.EnterThreshold
	}
}

func clampNegative(name string, v *float64) {
	if *v < 0 {
		log.Warningf("%s %v is negative, using 0", name, *v)
		*v = 0
	}
}

// Validate Config is sane. Numeric tuning values are handled by Sanitize.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, out := range c.Outputs {
		if _, ok := c.FODMap[out]; !ok {
			return fmt.Errorf("output %d: %w", out, ErrUnmappedOutput)
		}
	}
	return nil
}

// IntervalSeconds returns the loop interval in seconds
func (c *Config) IntervalSeconds() float64 {
	return c.Interval.Seconds()
}
