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
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/daemon"
)

// RootCmd is a main entry point. It's exported so cmdiscipline could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "cmdiscipline",
	Short: "Discipline and inspect a Renesas ClockMatrix over SPI or I2C",
}

// flags
var (
	rootVerboseFlag bool
	rootConfigFlag  string
	rootBusFlag     string
	rootDeviceFlag  string
)

var okString = color.GreenString("[ OK ]")
var failString = color.RedString("[FAIL]")

// flags that can override the config file
var overridableFlags = []string{"bus", "device", "monitoringport", "interval", "samplelog", "dryrun", "trace", "scheduler"}

func init() {
	defaults := daemon.DefaultConfig()
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootConfigFlag, "config", "c", "", "path to the config")
	RootCmd.PersistentFlags().StringVar(&rootBusFlag, "bus", defaults.Bus.Type, "bus type: spi, i2c or sim")
	RootCmd.PersistentFlags().StringVarP(&rootDeviceFlag, "device", "d", defaults.Bus.Device, "spidev path or I2C bus name")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// prepareConfig merges defaults, the config file and the flags set on cmd
func prepareConfig(cmd *cobra.Command, o daemon.Overrides) (*daemon.Config, error) {
	setFlags := map[string]bool{}
	for _, name := range overridableFlags {
		if cmd.Flags().Changed(name) {
			setFlags[name] = true
		}
	}
	o.BusType = rootBusFlag
	o.Device = rootDeviceFlag
	return daemon.PrepareConfig(rootConfigFlag, o, setFlags)
}

// openDevice opens the bus from config. The returned cleanup closes it.
func openDevice(cmd *cobra.Command) (*daemon.Config, *clockmatrix.Device, func(), error) {
	cfg, err := prepareConfig(cmd, daemon.Overrides{})
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := daemon.OpenBus(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := b.Close(); err != nil {
			log.Warningf("closing bus: %v", err)
		}
	}
	return cfg, clockmatrix.NewDevice(b), cleanup, nil
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
