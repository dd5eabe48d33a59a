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

// Package daemon wires configuration, transport, monitoring and sample
// sinks around the servo loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/cmdiscipline/bus"
	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/servo"
	"github.com/facebook/cmdiscipline/sim"
)

// OpenBus opens the transport described by cfg
func OpenBus(cfg *Config) (bus.Bus, error) {
	switch cfg.Bus.Type {
	case bus.TypeSPI:
		s, err := bus.OpenSPI(cfg.Bus.Device, cfg.Bus.SpeedHz, cfg.Bus.Mode)
		if err != nil {
			return nil, fmt.Errorf("opening SPI %q: %w", cfg.Bus.Device, err)
		}
		return s, nil
	case bus.TypeI2C:
		d, err := bus.OpenI2C(cfg.Bus.Device, cfg.Bus.Address)
		if err != nil {
			return nil, fmt.Errorf("opening I2C %q: %w", cfg.Bus.Device, err)
		}
		return d, nil
	case bus.TypeSim:
		log.Warningf("using simulated ClockMatrix, nothing is written to hardware")
		return sim.New(cfg.Sim), nil
	}
	return nil, fmt.Errorf("unsupported bus type %q", cfg.Bus.Type)
}

// Daemon owns the bus and runs the servo next to the monitoring server
type Daemon struct {
	cfg     *Config
	bus     bus.Bus
	dev     *clockmatrix.Device
	stats   *JSONStats
	sched   servo.Scheduler
	logger  servo.Logger
	closers []func()
}

// New creates Daemon over an opened bus. The Daemon takes ownership of b.
func New(cfg *Config, b bus.Bus) (*Daemon, error) {
	sched, err := servo.NewScheduler(cfg.Servo.Scheduler)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		cfg:   cfg,
		bus:   b,
		dev:   clockmatrix.NewDevice(b),
		stats: NewJSONStats(),
		sched: sched,
	}
	var loggers servo.MultiLogger
	if cfg.SampleLog != "" {
		f, err := os.Create(cfg.SampleLog)
		if err != nil {
			return nil, fmt.Errorf("creating sample log: %w", err)
		}
		d.closers = append(d.closers, func() { _ = f.Close() })
		loggers = append(loggers, servo.NewCSVLogger(f))
	}
	if cfg.Influx.URL != "" {
		l := NewInfluxLogger(cfg.Influx, d.stats.RunID())
		d.closers = append(d.closers, l.Close)
		loggers = append(loggers, l)
	}
	if len(loggers) > 0 {
		d.logger = loggers
	}
	log.Infof("run id %s", d.stats.RunID())
	return d, nil
}

// Stats returns the monitoring stats
func (d *Daemon) Stats() *JSONStats {
	return d.stats
}

// Device returns the chip
func (d *Daemon) Device() *clockmatrix.Device {
	return d.dev
}

// Run runs the servo and the monitoring server until ctx is cancelled or the servo fails
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.Servo.Trace {
		r, err := Sanity(d.dev, d.cfg.Servo)
		if err != nil {
			return err
		}
		r.Log()
	}
	disc := servo.NewDiscipline(d.dev, d.cfg.Servo, d.sched, d.stats, d.logger)
	eg, ctx := errgroup.WithContext(ctx)
	if d.cfg.MonitoringPort > 0 {
		eg.Go(func() error {
			return d.stats.Start(ctx, d.cfg.MonitoringPort)
		})
	}
	eg.Go(func() error {
		err := disc.Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Infof("servo stopped")
			return nil
		}
		return err
	})
	return eg.Wait()
}

// Close releases sinks and the bus
func (d *Daemon) Close() error {
	for _, c := range d.closers {
		c()
	}
	return d.bus.Close()
}
