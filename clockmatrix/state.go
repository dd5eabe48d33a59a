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

package clockmatrix

import (
	"fmt"
	"strings"
)

// LockState is the DPLL_STATE field of DPLLn_STATUS
type LockState uint8

// Lock states reported by the chip
const (
	LockStateFreerun  LockState = 0
	LockStateLockAcq  LockState = 1
	LockStateLockRec  LockState = 2
	LockStateLocked   LockState = 3
	LockStateHoldover LockState = 4
	LockStateDisabled LockState = 6
	LockStateUnknown  LockState = 7
)

var lockStateToString = map[LockState]string{
	LockStateFreerun:  "FREERUN",
	LockStateLockAcq:  "LOCKACQ",
	LockStateLockRec:  "LOCKREC",
	LockStateLocked:   "LOCKED",
	LockStateHoldover: "HOLDOVER",
	LockStateDisabled: "DISABLED",
	LockStateUnknown:  "UNKNOWN",
}

func (s LockState) String() string {
	if str, ok := lockStateToString[s]; ok {
		return str
	}
	return fmt.Sprintf("UNSUPPORTED(%d)", uint8(s))
}

// OperatingState is the STATE_MODE field of DPLL_MODE
type OperatingState uint8

// Operating states that can be forced
const (
	OperatingStateNormal   OperatingState = 0
	OperatingStateFreerun  OperatingState = 2
	OperatingStateHoldover OperatingState = 3
)

var operatingStateToString = map[OperatingState]string{
	OperatingStateNormal:   "NORMAL",
	OperatingStateFreerun:  "FREERUN",
	OperatingStateHoldover: "HOLDOVER",
}

func (s OperatingState) String() string {
	if str, ok := operatingStateToString[s]; ok {
		return str
	}
	return fmt.Sprintf("UNSUPPORTED(%d)", uint8(s))
}

// ParseOperatingState parses NORMAL, FREERUN or HOLDOVER, case insensitive
func ParseOperatingState(s string) (OperatingState, error) {
	for k, v := range operatingStateToString {
		if strings.EqualFold(v, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operating state %q, want one of NORMAL, FREERUN, HOLDOVER", s)
}
