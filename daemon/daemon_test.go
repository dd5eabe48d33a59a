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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/cmdiscipline/bus"
	"github.com/facebook/cmdiscipline/servo"
	"github.com/facebook/cmdiscipline/sim"
)

func simConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Bus.Type = bus.TypeSim
	cfg.MonitoringPort = 0
	cfg.SampleLog = filepath.Join(t.TempDir(), "samples.csv")
	cfg.Servo.Interval = 10 * time.Millisecond
	cfg.Servo.MeasureWindow = 50 * time.Millisecond
	cfg.Servo.Outputs = []int{9}
	cfg.Servo.Kp = 0.3
	cfg.Servo.Ki = 0.02
	cfg.Sim.NoiseRMS = 0
	return cfg
}

func TestOpenBus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bus.Type = bus.TypeSim
	b, err := OpenBus(cfg)
	require.NoError(t, err)
	require.IsType(t, &sim.Plant{}, b)
	require.NoError(t, b.Close())

	cfg.Bus.Type = "usb"
	_, err = OpenBus(cfg)
	require.Error(t, err)
}

func TestNewBadScheduler(t *testing.T) {
	cfg := simConfig(t)
	cfg.Servo.Scheduler = "cron"
	_, err := New(cfg, sim.New(cfg.Sim))
	require.Error(t, err)
}

func TestDaemonRunSim(t *testing.T) {
	cfg := simConfig(t)
	b, err := OpenBus(cfg)
	require.NoError(t, err)
	d, err := New(cfg, b)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(time.Second, cancel)
	require.NoError(t, d.Run(ctx))
	require.NoError(t, d.Close())

	counters := d.Stats().GetCounters()
	require.Greater(t, counters["samples"], int64(5))
	require.Greater(t, counters["steps"], int64(0))
	require.NotEqual(t, "MEASURE", d.Stats().GetStatus().State)

	data, err := os.ReadFile(cfg.SampleLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, "time,state,iteration,raw,phase_raw,phase,outlier,drift_ppb,cmd_ppb,word,integral", lines[0])
	require.Greater(t, len(lines), 5)
	require.Contains(t, lines[1], ",MEASURE,0,")
}

func TestDaemonRunBusError(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := bus.NewMockBus(ctrl)
	b.EXPECT().Read(gomock.Any(), gomock.Any()).Return(errors.New("nak"))
	b.EXPECT().Close().Return(nil)

	cfg := simConfig(t)
	cfg.SampleLog = ""
	cfg.Servo.Trace = false
	d, err := New(cfg, b)
	require.NoError(t, err)
	err = d.Run(context.Background())
	var be *servo.BusError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "read", be.Op)
	require.NoError(t, d.Close())
}
