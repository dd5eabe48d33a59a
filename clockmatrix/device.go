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

// Package clockmatrix implements register semantics of the Renesas ClockMatrix
// 8A3400x family used to discipline a DPLL.
package clockmatrix

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/cmdiscipline/bus"
	"github.com/facebook/cmdiscipline/codec"
	"github.com/facebook/cmdiscipline/register"
)

// ErrBadChannel is returned for DPLL or output index out of range
var ErrBadChannel = errors.New("channel out of range")

// FOD is the fractional output divider configuration of a DPLL
type FOD struct {
	M  uint64
	N  uint16
	Hz float64
}

// Info is the chip identification
type Info struct {
	Major     uint8
	Minor     uint8
	Hotfix    uint8
	ProductID uint16
	JTAGID    uint16
}

func (i Info) String() string {
	return fmt.Sprintf("%d.%d.%d product=0x%04X jtag=0x%04X", i.Major, i.Minor, i.Hotfix, i.ProductID, i.JTAGID)
}

type dpllRegs struct {
	phaseStatus register.Handle
	lockState   register.FieldHandle
	lockSticky  register.FieldHandle
	fodM        register.Handle
	fodN        register.Handle
	wrFreq      register.Handle
	mode        register.Handle
	stateMode   register.FieldHandle
}

type outputRegs struct {
	div      register.Handle
	phaseAdj register.Handle
}

// Device talks to a ClockMatrix chip through a register.Adapter.
// All handles are resolved once in NewDevice.
type Device struct {
	regs        *register.Adapter
	dpll        [register.NumDPLL]dpllRegs
	output      [register.NumOutput]outputRegs
	stickyClear register.Handle
	release     [3]register.Handle
	productID   register.Handle
	jtagID      register.Handle
}

// NewDevice returns Device over b
func NewDevice(b bus.Bus) *Device {
	m := register.ClockMatrix
	d := &Device{regs: register.NewAdapter(b)}
	for n := 0; n < register.NumDPLL; n++ {
		status := register.DPLLName(n, register.DPLLStatus)
		d.dpll[n] = dpllRegs{
			phaseStatus: m.MustResolve(register.ModuleStatus, 0, register.DPLLName(n, register.DPLLPhaseStatus)),
			lockState:   m.MustResolveField(register.ModuleStatus, 0, status, register.DPLLStateField),
			lockSticky:  m.MustResolveField(register.ModuleStatus, 0, status, register.LockStickyField),
			fodM:        m.MustResolve(register.ModuleDPLLCtrl, n, register.FODFreqM),
			fodN:        m.MustResolve(register.ModuleDPLLCtrl, n, register.FODFreqN),
			wrFreq:      m.MustResolve(register.ModuleDPLLFreqWrite, n, register.DPLLWrFreq),
			mode:        m.MustResolve(register.ModuleDPLLConfig, n, register.DPLLMode),
			stateMode:   m.MustResolveField(register.ModuleDPLLConfig, n, register.DPLLMode, register.StateModeField),
		}
	}
	for n := 0; n < register.NumOutput; n++ {
		d.output[n] = outputRegs{
			div:      m.MustResolve(register.ModuleOutput, n, register.OutDiv),
			phaseAdj: m.MustResolve(register.ModuleOutput, n, register.OutPhaseAdj),
		}
	}
	d.stickyClear = m.MustResolve(register.ModuleStatus, 0, register.StickyStatusClear)
	d.release = [3]register.Handle{
		m.MustResolve(register.ModuleGeneralStatus, 0, register.MajorRelease),
		m.MustResolve(register.ModuleGeneralStatus, 0, register.MinorRelease),
		m.MustResolve(register.ModuleGeneralStatus, 0, register.HotfixRelease),
	}
	d.productID = m.MustResolve(register.ModuleGeneralStatus, 0, register.ProductID)
	d.jtagID = m.MustResolve(register.ModuleGeneralStatus, 0, register.JTAGDeviceID)
	return d
}

// Adapter exposes named register access for diagnostics
func (d *Device) Adapter() *register.Adapter {
	return d.regs
}

func (d *Device) dpllRegs(n int) (*dpllRegs, error) {
	if n < 0 || n >= register.NumDPLL {
		return nil, fmt.Errorf("dpll %d: %w", n, ErrBadChannel)
	}
	return &d.dpll[n], nil
}

func (d *Device) outputRegs(n int) (*outputRegs, error) {
	if n < 0 || n >= register.NumOutput {
		return nil, fmt.Errorf("output %d: %w", n, ErrBadChannel)
	}
	return &d.output[n], nil
}

// PhaseStatus returns the signed 36-bit DPLLn_PHASE_STATUS word
func (d *Device) PhaseStatus(dpll int) (int64, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return 0, err
	}
	b, err := d.regs.ReadBytes(r.phaseStatus)
	if err != nil {
		return 0, err
	}
	return codec.DecodePhase(b)
}

// FOD reads FOD_FREQ_M and FOD_FREQ_N of a DPLL
func (d *Device) FOD(dpll int) (FOD, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return FOD{}, err
	}
	mb, err := d.regs.ReadBytes(r.fodM)
	if err != nil {
		return FOD{}, err
	}
	nb, err := d.regs.ReadBytes(r.fodN)
	if err != nil {
		return FOD{}, err
	}
	m, n, err := codec.DecodeFOD(mb, nb)
	if err != nil {
		return FOD{}, err
	}
	return FOD{M: m, N: n, Hz: codec.FODFrequency(m, n)}, nil
}

// FODFrequency returns the FOD output frequency of a DPLL in Hz
func (d *Device) FODFrequency(dpll int) (float64, error) {
	f, err := d.FOD(dpll)
	if err != nil {
		return 0, err
	}
	return f.Hz, nil
}

// OutputDivider reads OUT_DIV
func (d *Device) OutputDivider(out int) (uint32, error) {
	r, err := d.outputRegs(out)
	if err != nil {
		return 0, err
	}
	b, err := d.regs.ReadBytes(r.div)
	if err != nil {
		return 0, err
	}
	return codec.DecodeOutputDivider(b)
}

// PhaseAdjust reads OUT_PHASE_ADJ in FOD cycles
func (d *Device) PhaseAdjust(out int) (int32, error) {
	r, err := d.outputRegs(out)
	if err != nil {
		return 0, err
	}
	b, err := d.regs.ReadBytes(r.phaseAdj)
	if err != nil {
		return 0, err
	}
	return codec.DecodePhaseAdjust(b)
}

// SetPhaseAdjust writes OUT_PHASE_ADJ
func (d *Device) SetPhaseAdjust(out int, v int32) error {
	r, err := d.outputRegs(out)
	if err != nil {
		return err
	}
	b := codec.EncodePhaseAdjust(v)
	log.Debugf("%s <- % x (%d)", r.phaseAdj, b, v)
	return d.regs.WriteBytes(r.phaseAdj, b)
}

// WriteFrequency writes a DPLL_WR_FREQ word, clamped to 42 bits
func (d *Device) WriteFrequency(dpll int, word int64) error {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return err
	}
	b := codec.EncodeFrequency(codec.Clamp42(word))
	log.Debugf("%s <- % x (%d)", r.wrFreq, b, word)
	return d.regs.WriteBytes(r.wrFreq, b)
}

// Frequency reads back the DPLL_WR_FREQ word
func (d *Device) Frequency(dpll int) (int64, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return 0, err
	}
	b, err := d.regs.ReadBytes(r.wrFreq)
	if err != nil {
		return 0, err
	}
	return codec.DecodeFrequency(b)
}

// LockState reads DPLL_STATE of DPLLn_STATUS
func (d *Device) LockState(dpll int) (LockState, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return LockStateUnknown, err
	}
	v, err := d.regs.ReadField(r.lockState)
	if err != nil {
		return LockStateUnknown, err
	}
	return LockState(v), nil
}

// StateChangeSticky reads LOCK_STATE_CHANGE_STICKY of DPLLn_STATUS
func (d *Device) StateChangeSticky(dpll int) (bool, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return false, err
	}
	v, err := d.regs.ReadField(r.lockSticky)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ClearStateChangeSticky clears the sticky bit of a DPLL. Bits are write-1-to-clear.
func (d *Device) ClearStateChangeSticky(dpll int) error {
	if _, err := d.dpllRegs(dpll); err != nil {
		return err
	}
	return d.regs.Write8(d.stickyClear, 1<<uint(dpll))
}

// SetOperatingState forces STATE_MODE and triggers DPLL_MODE so it takes effect
func (d *Device) SetOperatingState(dpll int, s OperatingState) error {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return err
	}
	log.Infof("dpll %d: setting operating state %s", dpll, s)
	if err := d.regs.WriteField(r.stateMode, uint8(s)); err != nil {
		return err
	}
	return d.regs.Trigger(r.mode)
}

// OperatingState reads STATE_MODE
func (d *Device) OperatingState(dpll int) (OperatingState, error) {
	r, err := d.dpllRegs(dpll)
	if err != nil {
		return 0, err
	}
	v, err := d.regs.ReadField(r.stateMode)
	if err != nil {
		return 0, err
	}
	return OperatingState(v), nil
}

// Info reads firmware release and chip identifiers
func (d *Device) Info() (Info, error) {
	var info Info
	rel := make([]uint8, len(d.release))
	for i, h := range d.release {
		v, err := d.regs.Read8(h)
		if err != nil {
			return info, err
		}
		rel[i] = v
	}
	info.Major, info.Minor, info.Hotfix = rel[0], rel[1], rel[2]
	b, err := d.regs.ReadBytes(d.productID)
	if err != nil {
		return info, err
	}
	info.ProductID = uint16(b[0]) | uint16(b[1])<<8
	b, err = d.regs.ReadBytes(d.jtagID)
	if err != nil {
		return info, err
	}
	info.JTAGID = uint16(b[0]) | uint16(b[1])<<8
	return info, nil
}
