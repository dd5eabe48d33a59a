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
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/cmdiscipline/bus"
	"github.com/facebook/cmdiscipline/servo"
	"github.com/facebook/cmdiscipline/sim"
)

var validate = validator.New()

// InfluxConfig describes the optional InfluxDB sample sink. Empty URL disables it.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

// Config represents configuration we expect to read from file
type Config struct {
	Bus            bus.Config    `yaml:"bus"`
	Servo          *servo.Config `yaml:"servo"`
	Sim            sim.Config    `yaml:"sim"`
	MonitoringPort int           `yaml:"monitoring_port" validate:"gte=0,lte=65535"`
	SampleLog      string        `yaml:"sample_log"`
	Influx         InfluxConfig  `yaml:"influx"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Bus:            bus.DefaultConfig(),
		Servo:          servo.DefaultConfig(),
		Sim:            sim.DefaultConfig(),
		MonitoringPort: 4270,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Servo == nil {
		return fmt.Errorf("servo section is missing")
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if err := c.Servo.Validate(); err != nil {
		return fmt.Errorf("servo: %w", err)
	}
	return nil
}

// ReadConfig reads config and unmarshals it from yaml on top of DefaultConfig
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	// yaml merges into existing maps, Sanitize restores the default if unset
	c.Servo.FODMap = nil
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}

// Overrides are the values CLI flags can replace
type Overrides struct {
	BusType        string
	Device         string
	MonitoringPort int
	Interval       time.Duration
	SampleLog      string
	DryRun         bool
	Trace          bool
	Scheduler      string
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, o Overrides, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if cfg.Servo == nil {
		cfg.Servo = servo.DefaultConfig()
	}
	if setFlags["bus"] {
		warn("bus")
		cfg.Bus.Type = o.BusType
	}
	if setFlags["device"] {
		warn("device")
		cfg.Bus.Device = o.Device
	}
	if setFlags["monitoringport"] {
		warn("monitoringPort")
		cfg.MonitoringPort = o.MonitoringPort
	}
	if setFlags["interval"] {
		warn("interval")
		cfg.Servo.Interval = o.Interval
	}
	if setFlags["samplelog"] {
		warn("sampleLog")
		cfg.SampleLog = o.SampleLog
	}
	if setFlags["dryrun"] {
		warn("dryRun")
		cfg.Servo.DryRun = o.DryRun
	}
	if setFlags["trace"] {
		warn("trace")
		cfg.Servo.Trace = o.Trace
	}
	if setFlags["scheduler"] {
		warn("scheduler")
		cfg.Servo.Scheduler = o.Scheduler
	}
	cfg.Servo.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %s", spew.Sdump(cfg))
	return cfg, nil
}
