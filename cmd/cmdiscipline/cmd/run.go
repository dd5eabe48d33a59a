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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/cmdiscipline/daemon"
)

// flags
var (
	runMonitoringPortFlag int
	runIntervalFlag       time.Duration
	runSampleLogFlag      string
	runDryRunFlag         bool
	runTraceFlag          bool
	runSchedulerFlag      string
)

func init() {
	defaults := daemon.DefaultConfig()
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to start monitoring http server on, 0 disables it")
	runCmd.Flags().DurationVar(&runIntervalFlag, "interval", defaults.Servo.Interval, "loop interval")
	runCmd.Flags().StringVar(&runSampleLogFlag, "samplelog", defaults.SampleLog, "write per-iteration samples as CSV to this file")
	runCmd.Flags().BoolVar(&runDryRunFlag, "dryrun", defaults.Servo.DryRun, "compute and log corrections without writing them")
	runCmd.Flags().BoolVar(&runTraceFlag, "trace", defaults.Servo.Trace, "log every iteration and write")
	runCmd.Flags().StringVar(&runSchedulerFlag, "scheduler", defaults.Servo.Scheduler, "sleep or deadline")
}

func doRun(cfg *daemon.Config) error {
	b, err := daemon.OpenBus(cfg)
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, b)
	if err != nil {
		_ = b.Close()
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Warningf("closing: %v", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the servo: measure, step the outputs into place, then slew the DPLL frequency",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()

		cfg, err := prepareConfig(cmd, daemon.Overrides{
			MonitoringPort: runMonitoringPortFlag,
			Interval:       runIntervalFlag,
			SampleLog:      runSampleLogFlag,
			DryRun:         runDryRunFlag,
			Trace:          runTraceFlag,
			Scheduler:      runSchedulerFlag,
		})
		if err != nil {
			log.Fatal(err)
		}
		if err := doRun(cfg); err != nil {
			log.Fatal(err)
		}
	},
}
