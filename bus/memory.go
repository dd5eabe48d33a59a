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

package bus

import (
	"fmt"
	"sync"
)

// Memory is an in-memory register file covering the full 16-bit address space
type Memory struct {
	mux  sync.Mutex
	regs [1 << 16]byte

	// OnWrite is called after every write with the lock released
	OnWrite func(addr uint16, p []byte)
}

// NewMemory returns zeroed Memory
func NewMemory() *Memory {
	return &Memory{}
}

func span(addr uint16, n int) error {
	if int(addr)+n > 1<<16 {
		return fmt.Errorf("access 0x%04x+%d is out of address space", addr, n)
	}
	return nil
}

// Read implements Bus
func (m *Memory) Read(addr uint16, p []byte) error {
	if err := span(addr, len(p)); err != nil {
		return err
	}
	m.mux.Lock()
	copy(p, m.regs[int(addr):int(addr)+len(p)])
	m.mux.Unlock()
	return nil
}

// Write implements Bus
func (m *Memory) Write(addr uint16, p []byte) error {
	if err := m.Poke(addr, p); err != nil {
		return err
	}
	if m.OnWrite != nil {
		m.OnWrite(addr, p)
	}
	return nil
}

// Poke sets registers without triggering OnWrite
func (m *Memory) Poke(addr uint16, p []byte) error {
	if err := span(addr, len(p)); err != nil {
		return err
	}
	m.mux.Lock()
	copy(m.regs[int(addr):int(addr)+len(p)], p)
	m.mux.Unlock()
	return nil
}

// Peek returns a copy of n registers at addr
func (m *Memory) Peek(addr uint16, n int) []byte {
	p := make([]byte, n)
	_ = m.Read(addr, p)
	return p
}

// Close implements Bus
func (m *Memory) Close() error {
	return nil
}
