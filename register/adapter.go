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

import (
	"fmt"

	"github.com/facebook/cmdiscipline/bus"
)

// Adapter performs named register access over a bus
type Adapter struct {
	bus bus.Bus
}

// NewAdapter returns Adapter over b
func NewAdapter(b bus.Bus) *Adapter {
	return &Adapter{bus: b}
}

// Bus returns the underlying bus
func (a *Adapter) Bus() bus.Bus {
	return a.bus
}

// ReadBytes reads h.Size bytes at h
func (a *Adapter) ReadBytes(h Handle) ([]byte, error) {
	b := make([]byte, h.Size)
	if err := a.bus.Read(h.Addr, b); err != nil {
		return nil, fmt.Errorf("reading %s: %w", h, err)
	}
	return b, nil
}

// WriteBytes writes exactly h.Size bytes at h
func (a *Adapter) WriteBytes(h Handle, p []byte) error {
	if len(p) != h.Size {
		return fmt.Errorf("writing %s: expected %d bytes, got %d", h, h.Size, len(p))
	}
	if err := a.bus.Write(h.Addr, p); err != nil {
		return fmt.Errorf("writing %s: %w", h, err)
	}
	return nil
}

// Read8 reads a single byte at h
func (a *Adapter) Read8(h Handle) (uint8, error) {
	b := []byte{0}
	if err := a.bus.Read(h.Addr, b); err != nil {
		return 0, fmt.Errorf("reading %s: %w", h, err)
	}
	return b[0], nil
}

// Write8 writes a single byte at h
func (a *Adapter) Write8(h Handle, v uint8) error {
	if err := a.bus.Write(h.Addr, []byte{v}); err != nil {
		return fmt.Errorf("writing %s: %w", h, err)
	}
	return nil
}

// ReadField returns the value of f, shifted down
func (a *Adapter) ReadField(f FieldHandle) (uint8, error) {
	v, err := a.Read8(f.Handle)
	if err != nil {
		return 0, err
	}
	return (v >> f.Shift) & f.mask(), nil
}

// WriteField does read-modify-write of f, leaving other bits intact
func (a *Adapter) WriteField(f FieldHandle, v uint8) error {
	if v > f.mask() {
		return fmt.Errorf("value %d does not fit into %s (%d bits)", v, f, f.Width)
	}
	cur, err := a.Read8(f.Handle)
	if err != nil {
		return err
	}
	m := f.mask() << f.Shift
	return a.Write8(f.Handle, (cur&^m)|(v<<f.Shift))
}

// Trigger rewrites the current value of h. Some registers, like DPLL_MODE,
// only take effect when their byte is written.
func (a *Adapter) Trigger(h Handle) error {
	v, err := a.Read8(h)
	if err != nil {
		return err
	}
	return a.Write8(h, v)
}
