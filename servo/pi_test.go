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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/cmdiscipline/codec"
)

func TestPiServoSample(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := NewMockDevice(ctrl)
	cfg := testConfig()
	cfg.Kp = 0.5
	cfg.Ki = 0.1
	cfg.MaxPPB = 0
	cfg.WriteDPLLs = []int{2, 3}
	pi := NewPiServo(dev, cfg)

	// integral 1e-6, command 0.5e-6 + 0.1e-6
	want := codec.FractionToWord(6e-7)
	gomock.InOrder(
		dev.EXPECT().WriteFrequency(2, want).Return(nil),
		dev.EXPECT().WriteFrequency(3, want).Return(nil),
	)
	cmd, err := pi.Sample(1e-6, 1)
	require.NoError(t, err)
	require.InDelta(t, 600.0, cmd.PPB, 1e-9)
	require.Equal(t, want, cmd.Word)
	require.InDelta(t, 1e-6, pi.Integral(), 1e-18)
	require.Equal(t, cmd, pi.LastCommand())

	// integral 1e-6 + 2e-6*0.5, command 1e-6 + 0.1*2e-6
	want = codec.FractionToWord(1.2e-6)
	dev.EXPECT().WriteFrequency(2, want).Return(nil)
	dev.EXPECT().WriteFrequency(3, want).Return(nil)
	cmd, err = pi.Sample(2e-6, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 1200.0, cmd.PPB, 1e-9)
	require.Equal(t, want, cmd.Word)
}

func TestPiServoClamp(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPPB = 100
	pi := NewPiServo(nil, cfg)
	cmd := pi.Command(5e-7)
	require.InDelta(t, 1e-7, cmd.Fraction, 1e-20)
	require.Equal(t, codec.PPBToWord(100), cmd.Word)
	cmd = pi.Command(-5e-7)
	require.InDelta(t, -100.0, cmd.PPB, 1e-9)

	cfg.MaxPPB = 0
	cmd = pi.Command(5e-7)
	require.InDelta(t, 500.0, cmd.PPB, 1e-9)
	require.Equal(t, int64(4503599627), cmd.Word)
}

func TestPiServoIntegralSurvivesWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := NewMockDevice(ctrl)
	cfg := testConfig()
	cfg.Ki = 0.1
	cfg.WriteDPLLs = []int{2, 3}
	pi := NewPiServo(dev, cfg)
	boom := errors.New("nack")

	// first failure aborts, DPLL3 is not written
	dev.EXPECT().WriteFrequency(2, gomock.Any()).Return(boom)
	_, err := pi.Sample(1e-3, 1)
	require.ErrorIs(t, err, boom)
	require.InDelta(t, 1e-3, pi.Integral(), 1e-15)
}

func TestPiServoSeedReset(t *testing.T) {
	cfg := testConfig()
	cfg.Ki = 0.5
	pi := NewPiServo(nil, cfg)
	pi.Seed(1e-7)
	require.InDelta(t, 2e-7, pi.Integral(), 1e-20)

	// with zero phase the seeded servo reproduces the seed command
	cmd := pi.Command(Polarity * (cfg.Kp*0 + cfg.Ki*pi.Integral()))
	require.InDelta(t, 1e-7, cmd.Fraction, 1e-20)

	pi.Reset()
	require.Equal(t, 0.0, pi.Integral())

	cfg.Ki = 0
	pi.Seed(1e-7)
	require.Equal(t, 0.0, pi.Integral())
}

func TestPiServoDryRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := NewMockDevice(ctrl)
	cfg := testConfig()
	cfg.Kp = 1
	cfg.DryRun = true
	cfg.Trace = true
	pi := NewPiServo(dev, cfg)

	// no WriteFrequency expected
	cmd, err := pi.Sample(1e-7, 1)
	require.NoError(t, err)
	require.InDelta(t, 100.0, cmd.PPB, 1e-9)
	cmd, err = pi.Apply(-2e-7)
	require.NoError(t, err)
	require.InDelta(t, -200.0, cmd.PPB, 1e-9)
}

func TestPiServoTraceReadback(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := NewMockDevice(ctrl)
	cfg := testConfig()
	cfg.Trace = true
	pi := NewPiServo(dev, cfg)

	want := codec.FractionToWord(-1e-8)
	gomock.InOrder(
		dev.EXPECT().WriteFrequency(2, want).Return(nil),
		dev.EXPECT().Frequency(2).Return(want, nil),
	)
	_, err := pi.Apply(-1e-8)
	require.NoError(t, err)
}
