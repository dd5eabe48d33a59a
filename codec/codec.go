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

// Package codec converts ClockMatrix register words to physical units and back.
package codec

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Register widths in bytes
const (
	PhaseStatusSize   = 5
	PhaseAdjustSize   = 4
	OutputDividerSize = 4
	FODMSize          = 6
	FODNSize          = 2
	FrequencySize     = 6
)

// ReferenceHz is the nominal system clock the phase detector runs from
const ReferenceHz = 625e6

// ITDCUnit is the time represented by one LSB of DPLL_PHASE_STATUS, in seconds (50ps)
const ITDCUnit = 1.0 / (32 * ReferenceHz)

// FrequencyFracBits is the binary exponent of DPLL_WR_FREQ: one LSB is 2^-53
const FrequencyFracBits = 53

const (
	phaseBits = 36
	phaseMask = (uint64(1) << phaseBits) - 1
	phaseSign = uint64(1) << (phaseBits - 1)

	freqBits = 42
	freqMask = (uint64(1) << freqBits) - 1
	freqSign = uint64(1) << (freqBits - 1)

	// MaxFrequencyWord is the largest value DPLL_WR_FREQ can hold
	MaxFrequencyWord = int64(1)<<(freqBits-1) - 1
	// MinFrequencyWord is the smallest value DPLL_WR_FREQ can hold
	MinFrequencyWord = -(int64(1) << (freqBits - 1))
)

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt32 saturates v to the int32 range
func ClampInt32(v int64) int32 {
	return int32(Clamp(v, math.MinInt32, math.MaxInt32))
}

// Clamp42 saturates v to the signed 42-bit range
func Clamp42(v int64) int64 {
	return Clamp(v, MinFrequencyWord, MaxFrequencyWord)
}

func checkLen(what string, b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("%s: expected %d bytes, got %d", what, n, len(b))
	}
	return nil
}

func le(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLE(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// DecodePhase converts 5 little-endian bytes of DPLL_PHASE_STATUS into a signed 36-bit value.
// Bits above 35 are ignored.
func DecodePhase(b []byte) (int64, error) {
	if err := checkLen("phase status", b, PhaseStatusSize); err != nil {
		return 0, err
	}
	v := le(b) & phaseMask
	s := int64(v)
	if v&phaseSign != 0 {
		s |= ^int64(phaseMask)
	}
	return s, nil
}

// EncodePhase packs the low 36 bits of v into 5 little-endian bytes
func EncodePhase(v int64) []byte {
	return putLE(uint64(v)&phaseMask, PhaseStatusSize)
}

// PhaseSeconds converts a phase status value to seconds
func PhaseSeconds(raw int64) float64 {
	return float64(raw) * ITDCUnit
}

// Wrap folds x into [-0.5, 0.5)
func Wrap(x float64) float64 {
	for x >= 0.5 {
		x -= 1.0
	}
	for x < -0.5 {
		x += 1.0
	}
	return x
}

// FODFrequency returns M/N in Hz. N of 0 means 1.
func FODFrequency(m uint64, n uint16) float64 {
	if n == 0 {
		n = 1
	}
	return float64(m) / float64(n)
}

// DecodeFOD decodes FOD_FREQ_M (6 bytes) and FOD_FREQ_N (2 bytes)
func DecodeFOD(mb, nb []byte) (uint64, uint16, error) {
	if err := checkLen("fod m", mb, FODMSize); err != nil {
		return 0, 0, err
	}
	if err := checkLen("fod n", nb, FODNSize); err != nil {
		return 0, 0, err
	}
	return le(mb), uint16(le(nb)), nil
}

// EncodeFOD packs M and N the way DPLL_Ctrl stores them
func EncodeFOD(m uint64, n uint16) ([]byte, []byte) {
	return putLE(m, FODMSize), putLE(uint64(n), FODNSize)
}

// DecodePhaseAdjust decodes OUT_PHASE_ADJ, a signed 32-bit count of FOD cycles
func DecodePhaseAdjust(b []byte) (int32, error) {
	if err := checkLen("phase adjust", b, PhaseAdjustSize); err != nil {
		return 0, err
	}
	return int32(uint32(le(b))), nil
}

// EncodePhaseAdjust packs v into 4 little-endian bytes
func EncodePhaseAdjust(v int32) []byte {
	return putLE(uint64(uint32(v)), PhaseAdjustSize)
}

// DecodeOutputDivider decodes OUT_DIV
func DecodeOutputDivider(b []byte) (uint32, error) {
	if err := checkLen("output divider", b, OutputDividerSize); err != nil {
		return 0, err
	}
	return uint32(le(b)), nil
}

// EncodeOutputDivider packs OUT_DIV
func EncodeOutputDivider(v uint32) []byte {
	return putLE(uint64(v), OutputDividerSize)
}

// FractionToWord converts a fractional frequency offset into a DPLL_WR_FREQ word.
// Rounds half away from zero, then saturates to the signed 42-bit range.
func FractionToWord(frac float64) int64 {
	r := math.Round(math.Ldexp(frac, FrequencyFracBits))
	if math.IsNaN(r) {
		return 0
	}
	// float64 -> int64 conversion of out of range values is implementation defined
	if r >= math.Ldexp(1, 62) {
		return MaxFrequencyWord
	}
	if r <= -math.Ldexp(1, 62) {
		return MinFrequencyWord
	}
	return Clamp42(int64(r))
}

// WordToFraction converts a DPLL_WR_FREQ word into a fractional frequency offset
func WordToFraction(word int64) float64 {
	return math.Ldexp(float64(word), -FrequencyFracBits)
}

// PPBToWord converts parts per billion into a DPLL_WR_FREQ word
func PPBToWord(ppb float64) int64 {
	return FractionToWord(ppb * 1e-9)
}

// WordToPPB converts a DPLL_WR_FREQ word into parts per billion
func WordToPPB(word int64) float64 {
	return WordToFraction(word) * 1e9
}

// EncodeFrequency packs the low 42 bits of word into 6 little-endian bytes
func EncodeFrequency(word int64) []byte {
	return putLE(uint64(word)&freqMask, FrequencySize)
}

// DecodeFrequency unpacks DPLL_WR_FREQ, sign extending bit 41
func DecodeFrequency(b []byte) (int64, error) {
	if err := checkLen("write frequency", b, FrequencySize); err != nil {
		return 0, err
	}
	v := le(b) & freqMask
	s := int64(v)
	if v&freqSign != 0 {
		s |= ^int64(freqMask)
	}
	return s, nil
}
