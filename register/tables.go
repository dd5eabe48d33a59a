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

package register

import "fmt"

// Module names
const (
	ModuleStatus        = "Status"
	ModuleOutput        = "Output"
	ModuleDPLLCtrl      = "DPLL_Ctrl"
	ModuleDPLLFreqWrite = "DPLL_Freq_Write"
	ModuleDPLLConfig    = "DPLL_Config"
	ModuleGeneralStatus = "DPLL_GeneralStatus"
)

// Register names used by the control loop
const (
	DPLLStatus          = "STATUS"
	DPLLPhaseStatus     = "PHASE_STATUS"
	DPLLFilterStatus    = "FILTER_STATUS"
	StickyStatusClear   = "DPLL_STATE_CHANGE_STICKY_CLEAR"
	OutDiv              = "OUT_DIV"
	OutCtrl1            = "OUT_CTRL_1"
	OutPhaseAdj         = "OUT_PHASE_ADJ_7_0"
	FODFreqM            = "FOD_FREQ_M_7_0"
	FODFreqN            = "FOD_FREQ_N_7_0"
	DPLLWrFreq          = "DPLL_WR_FREQ_7_0"
	DPLLMode            = "DPLL_MODE"
	DPLLCtrl0           = "DPLL_CTRL_0"
	MajorRelease        = "MAJOR_REL"
	MinorRelease        = "MINOR_REL"
	HotfixRelease       = "HOTFIX_REL"
	JTAGDeviceID        = "JTAG_DEVICE_ID"
	ProductID           = "PRODUCT_ID"
	EEPROMStatus        = "EEPROM_STATUS_LOW"
	DPLLStateField      = "DPLL_STATE"
	LockStickyField     = "LOCK_STATE_CHANGE_STICKY"
	HoldoverStickyField = "HOLDOVER_STATE_CHANGE_STICKY"
	StateModeField      = "STATE_MODE"
	PLLModeField        = "PLL_MODE"
)

// NumDPLL is the number of DPLL channels on 8A3400x
const NumDPLL = 8

// NumOutput is the number of output stages on 8A3400x
const NumOutput = 12

// statusRegisters is the Status module layout. Per-channel registers are expanded.
func statusRegisters() []Register {
	regs := []Register{
		{Name: "I2CM_STATUS", Offset: 0x000},
		{Name: "SER0_STATUS", Offset: 0x002},
		{Name: "SER0_SPI_STATUS", Offset: 0x003},
		{Name: "SER0_I2C_STATUS", Offset: 0x004},
		{Name: "SER1_STATUS", Offset: 0x005},
		{Name: "SER1_SPI_STATUS", Offset: 0x006},
		{Name: "SER1_I2C_STATUS", Offset: 0x007},
		{Name: "SYS_DPLL", Offset: 0x020},
		{Name: "DPLL_SYS_REF_STATUS", Offset: 0x02A},
		{Name: "DPLL_SYS_FILTER_STATUS", Offset: 0x084, Size: 6},
		{Name: "USER_GPIO0_TO_7_STATUS", Offset: 0x08A},
		{Name: "USER_GPIO8_TO_15_STATUS", Offset: 0x08B},
		{Name: StickyStatusClear, Offset: 0x12A},
	}
	for n := 0; n < NumDPLL; n++ {
		regs = append(regs,
			Register{
				Name:   DPLLName(n, DPLLStatus),
				Offset: 0x018 + uint16(n),
				Fields: dpllStatusFields,
			},
			Register{Name: DPLLName(n, DPLLFilterStatus), Offset: 0x044 + 8*uint16(n), Size: 6},
			Register{Name: DPLLName(n, DPLLPhaseStatus), Offset: 0x0DC + 8*uint16(n), Size: 5},
		)
	}
	return regs
}

var dpllStatusFields = []Field{
	{Name: DPLLStateField, Shift: 0, Width: 4},
	{Name: LockStickyField, Shift: 4, Width: 1},
	{Name: HoldoverStickyField, Shift: 5, Width: 1},
}

// DPLLName expands a per-channel Status register name, so
// DPLLName(5, DPLLPhaseStatus) is "DPLL5_PHASE_STATUS"
func DPLLName(n int, reg string) string {
	return fmt.Sprintf("DPLL%d_%s", n, reg)
}

var priorityFields = []Field{
	{Name: "PRIORITY_GROUP_NUMBER", Shift: 6, Width: 2},
	{Name: "PRIORITY_REF", Shift: 1, Width: 5},
	{Name: "PRIORITY_EN", Shift: 0, Width: 1},
}

// ClockMatrix is the register map of the 8A3400x family
var ClockMatrix = NewMap(
	Module{
		Name:      ModuleStatus,
		Bases:     []uint16{0xC03C},
		Registers: statusRegisters(),
	},
	Module{
		Name: ModuleOutput,
		Bases: []uint16{
			0xCA14, 0xCA24, 0xCA34, 0xCA44, 0xCA54, 0xCA64,
			0xCA80, 0xCA90, 0xCAA0, 0xCAB0, 0xCAC0, 0xCAD0,
		},
		Registers: []Register{
			{Name: OutDiv, Offset: 0x000, Size: 4},
			{Name: "OUT_DUTY_CYCLE_HIGH", Offset: 0x004, Size: 4},
			{Name: "OUT_CTRL_0", Offset: 0x008},
			{Name: OutCtrl1, Offset: 0x009},
			{Name: OutPhaseAdj, Offset: 0x00C, Size: 4},
		},
	},
	Module{
		Name: ModuleDPLLCtrl,
		Bases: []uint16{
			0xC600, 0xC63C, 0xC680, 0xC6BC, 0xC700, 0xC73C, 0xC780, 0xC7BC,
		},
		Registers: []Register{
			{Name: "DPLL_DECIMATOR_BW_MULT", Offset: 0x003},
			{Name: "DPLL_BW_0", Offset: 0x004},
			{Name: "DPLL_BW_1", Offset: 0x005, Fields: []Field{
				{Name: "BW_UNIT", Shift: 6, Width: 2},
				{Name: "BW_13_8", Shift: 0, Width: 6},
			}},
			{Name: "DPLL_PSL_0", Offset: 0x006},
			{Name: "DPLL_PSL_1", Offset: 0x007},
			{Name: "DPLL_PHASE_OFFSET_CFG", Offset: 0x014, Size: 5},
			{Name: "DPLL_FINE_PHASE_ADV_CFG", Offset: 0x01A, Size: 2},
			{Name: FODFreqM, Offset: 0x01C, Size: 6},
			{Name: FODFreqN, Offset: 0x022, Size: 2},
			{Name: "DPLL_FRAME_PULSE_SYNC", Offset: 0x03B},
		},
	},
	Module{
		Name: ModuleDPLLFreqWrite,
		Bases: []uint16{
			0xC838, 0xC840, 0xC848, 0xC850, 0xC858, 0xC860, 0xC868, 0xC870,
		},
		Registers: []Register{
			{Name: DPLLWrFreq, Offset: 0x000, Size: 6},
		},
	},
	Module{
		Name: ModuleDPLLConfig,
		Bases: []uint16{
			0xC3B0, 0xC400, 0xC438, 0xC480, 0xC4B8, 0xC500, 0xC538, 0xC580,
		},
		Registers: []Register{
			{Name: DPLLCtrl0, Offset: 0x002, Fields: []Field{
				{Name: "FORCE_LOCK_INPUT", Shift: 3, Width: 5},
				{Name: "GLOBAL_SYNC_EN", Shift: 2, Width: 1},
				{Name: "REVERTIVE_EN", Shift: 1, Width: 1},
				{Name: "HITLESS_EN", Shift: 0, Width: 1},
			}},
			{Name: "DPLL_REF_PRIORITY_0", Offset: 0x00F, Fields: priorityFields},
			{Name: "DPLL_REF_PRIORITY_1", Offset: 0x010, Fields: priorityFields},
			{Name: "DPLL_REF_PRIORITY_2", Offset: 0x011, Fields: priorityFields},
			{Name: "DPLL_REF_PRIORITY_3", Offset: 0x012, Fields: priorityFields},
			{Name: "DPLL_WRITE_FREQ_TIMER", Offset: 0x02C, Size: 2},
			{Name: "DPLL_COMBO_SLAVE_CFG_0", Offset: 0x032},
			{Name: DPLLMode, Offset: 0x037, Fields: []Field{
				{Name: "WRITE_TIMER_MODE", Shift: 6, Width: 1},
				{Name: PLLModeField, Shift: 3, Width: 3},
				{Name: StateModeField, Shift: 0, Width: 3},
			}},
		},
	},
	Module{
		Name:  ModuleGeneralStatus,
		Bases: []uint16{0xC014},
		Registers: []Register{
			{Name: EEPROMStatus, Offset: 0x008},
			{Name: "EEPROM_STATUS_HIGH", Offset: 0x009},
			{Name: MajorRelease, Offset: 0x010},
			{Name: MinorRelease, Offset: 0x011},
			{Name: HotfixRelease, Offset: 0x012},
			{Name: JTAGDeviceID, Offset: 0x01C, Size: 2},
			{Name: ProductID, Offset: 0x01E, Size: 2},
		},
	},
)
