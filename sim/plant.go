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

// Package sim provides an in-memory ClockMatrix whose measured phase responds
// to phase adjust and frequency writes, for dry runs without hardware.
package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/bus"
	"github.com/facebook/cmdiscipline/codec"
	"github.com/facebook/cmdiscipline/register"
)

// Config describes the simulated board
type Config struct {
	MeasureDPLL int `yaml:"measure_dpll"`
	// WriteDPLL is the channel whose DPLL_WR_FREQ steers the measured phase
	WriteDPLL int `yaml:"write_dpll"`
	// Output is the output whose OUT_PHASE_ADJ moves the measured phase
	Output int `yaml:"output"`
	// FODHz is programmed into every DPLL FOD
	FODHz    uint64 `yaml:"fod_hz"`
	OutputHz uint64 `yaml:"output_hz"`
	// InitialPhase is the phase error at start, seconds
	InitialPhase float64 `yaml:"initial_phase"`
	// OffsetPPB is the free running frequency error of the oscillator
	OffsetPPB float64 `yaml:"offset_ppb"`
	// NoiseRMS is the measurement noise, seconds
	NoiseRMS float64 `yaml:"noise_rms"`
	Seed     int64   `yaml:"seed"`
}

// DefaultConfig returns a board matching the default servo configuration
func DefaultConfig() Config {
	return Config{
		MeasureDPLL:  5,
		WriteDPLL:    2,
		Output:       9,
		FODHz:        500000000,
		OutputHz:     1,
		InitialPhase: 0.2,
		OffsetPPB:    50,
		NoiseRMS:     1e-9,
		Seed:         1,
	}
}

// Plant is a bus.Bus backed by bus.Memory with a phase model:
// the measured phase moves by -(commanded fraction - offset) per second
// and jumps by the phase adjust delta converted to seconds.
// With this sign the Step->Slew seed of -drift doubles the drift, so it
// takes the debug polarity check (or the PI unwinding the integral) to settle.
type Plant struct {
	mem *bus.Memory
	cfg Config
	now func() time.Time
	rnd *rand.Rand

	phaseStatus register.Handle
	phaseAdj    map[uint16]int
	wrFreq      uint16

	mux   sync.Mutex
	last  time.Time
	phase float64
	frac  float64
	adj   map[int]int32
}

// New creates Plant with registers preloaded
func New(cfg Config) *Plant {
	m := register.ClockMatrix
	p := &Plant{
		mem:         bus.NewMemory(),
		cfg:         cfg,
		now:         time.Now,
		rnd:         rand.New(rand.NewSource(cfg.Seed)),
		phaseStatus: m.MustResolve(register.ModuleStatus, 0, register.DPLLName(cfg.MeasureDPLL, register.DPLLPhaseStatus)),
		phaseAdj:    map[uint16]int{},
		wrFreq:      m.MustResolve(register.ModuleDPLLFreqWrite, cfg.WriteDPLL, register.DPLLWrFreq).Addr,
		phase:       cfg.InitialPhase,
		adj:         map[int]int32{},
	}
	p.last = p.now()
	p.preload()
	p.mem.OnWrite = p.onWrite
	return p
}

// SetClock replaces the time source, for tests
func (p *Plant) SetClock(now func() time.Time) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.now = now
	p.last = now()
}

// Memory exposes the register file
func (p *Plant) Memory() *bus.Memory {
	return p.mem
}

// Phase returns the true phase error in seconds
func (p *Plant) Phase() float64 {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.advance()
	return p.phase
}

func (p *Plant) preload() {
	m := register.ClockMatrix
	mb, nb := codec.EncodeFOD(p.cfg.FODHz, 1)
	for n := 0; n < register.NumDPLL; n++ {
		_ = p.mem.Poke(m.MustResolve(register.ModuleDPLLCtrl, n, register.FODFreqM).Addr, mb)
		_ = p.mem.Poke(m.MustResolve(register.ModuleDPLLCtrl, n, register.FODFreqN).Addr, nb)
		st := m.MustResolve(register.ModuleStatus, 0, register.DPLLName(n, register.DPLLStatus))
		_ = p.mem.Poke(st.Addr, []byte{3})
	}
	div := uint32(1)
	if p.cfg.OutputHz > 0 {
		div = uint32(p.cfg.FODHz / p.cfg.OutputHz)
	}
	for n := 0; n < register.NumOutput; n++ {
		_ = p.mem.Poke(m.MustResolve(register.ModuleOutput, n, register.OutDiv).Addr, codec.EncodeOutputDivider(div))
		p.phaseAdj[m.MustResolve(register.ModuleOutput, n, register.OutPhaseAdj).Addr] = n
	}
	_ = p.mem.Poke(m.MustResolve(register.ModuleGeneralStatus, 0, register.MajorRelease).Addr, []byte{4, 8, 7})
}

// advance moves the phase to now. Must be called with the lock held.
func (p *Plant) advance() {
	now := p.now()
	dt := now.Sub(p.last).Seconds()
	p.last = now
	p.phase += (p.cfg.OffsetPPB*1e-9 - p.frac) * dt
}

func overlaps(addr uint16, n int, h register.Handle) bool {
	return int(addr) < int(h.Addr)+h.Size && int(h.Addr) < int(addr)+n
}

// Read implements bus.Bus
func (p *Plant) Read(addr uint16, b []byte) error {
	if overlaps(addr, len(b), p.phaseStatus) {
		p.mux.Lock()
		p.advance()
		measured := codec.Wrap(p.phase + p.rnd.NormFloat64()*p.cfg.NoiseRMS)
		p.mux.Unlock()
		raw := int64(math.Round(measured / codec.ITDCUnit))
		if err := p.mem.Poke(p.phaseStatus.Addr, codec.EncodePhase(raw)); err != nil {
			return err
		}
	}
	return p.mem.Read(addr, b)
}

// Write implements bus.Bus
func (p *Plant) Write(addr uint16, b []byte) error {
	return p.mem.Write(addr, b)
}

// Close implements bus.Bus
func (p *Plant) Close() error {
	return nil
}

func (p *Plant) onWrite(addr uint16, b []byte) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if out, ok := p.phaseAdj[addr]; ok && len(b) == codec.PhaseAdjustSize {
		v, _ := codec.DecodePhaseAdjust(b)
		delta := int64(v) - int64(p.adj[out])
		p.adj[out] = v
		if out == p.cfg.Output && p.cfg.FODHz > 0 {
			p.advance()
			p.phase += float64(delta) / float64(p.cfg.FODHz)
			log.Debugf("sim: OUT%d phase adjust %+d cycles, phase now %.9e", out, delta, p.phase)
		}
		return
	}
	if addr == p.wrFreq && len(b) == codec.FrequencySize {
		w, _ := codec.DecodeFrequency(b)
		p.advance()
		p.frac = codec.WordToFraction(w)
		log.Debugf("sim: DPLL%d frequency %.3f ppb", p.cfg.WriteDPLL, p.frac*1e9)
	}
}
