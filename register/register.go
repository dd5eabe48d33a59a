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

// Package register describes the ClockMatrix register map and provides
// named register access on top of a byte bus.
package register

import (
	"fmt"
	"sort"
	"strings"
)

// Field is a bit field inside a single byte register
type Field struct {
	Name  string
	Shift uint8
	Width uint8
}

// Mask returns the in-place mask of the field
func (f Field) Mask() uint8 {
	if f.Width >= 8 {
		return 0xFF
	}
	return uint8((1<<f.Width)-1) << f.Shift
}

// Register is a register at a fixed offset from its module base
type Register struct {
	Name   string
	Offset uint16
	// Size in bytes of the logical value starting at Offset
	Size   int
	Fields []Field
}

// Module is a register block repeated at several base addresses
type Module struct {
	Name      string
	Bases     []uint16
	Registers []Register
}

// Register finds register by name
func (m *Module) Register(name string) (*Register, error) {
	for i := range m.Registers {
		if strings.EqualFold(m.Registers[i].Name, name) {
			return &m.Registers[i], nil
		}
	}
	return nil, fmt.Errorf("module %s has no register %q", m.Name, name)
}

// Base returns base address of instance
func (m *Module) Base(instance int) (uint16, error) {
	if instance < 0 || instance >= len(m.Bases) {
		return 0, fmt.Errorf("module %s has no instance %d (have %d)", m.Name, instance, len(m.Bases))
	}
	return m.Bases[instance], nil
}

// Handle is a register resolved to an absolute address
type Handle struct {
	Module   string
	Instance int
	Register string
	Addr     uint16
	Size     int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s[%d].%s@0x%04X", h.Module, h.Instance, h.Register, h.Addr)
}

// FieldHandle is a bit field resolved to an absolute address
type FieldHandle struct {
	Handle
	Field string
	Shift uint8
	Width uint8
}

func (f FieldHandle) String() string {
	return fmt.Sprintf("%s.%s", f.Handle, f.Field)
}

// mask returns the unshifted mask of the field value
func (f FieldHandle) mask() uint8 {
	if f.Width >= 8 {
		return 0xFF
	}
	return uint8(1<<f.Width) - 1
}

// Map is a set of modules, addressable by name
type Map struct {
	modules map[string]*Module
}

// NewMap builds Map from module descriptors
func NewMap(modules ...Module) *Map {
	m := &Map{modules: map[string]*Module{}}
	for i := range modules {
		mod := modules[i]
		m.modules[strings.ToLower(mod.Name)] = &mod
	}
	return m
}

// Module finds module by name, case insensitive
func (m *Map) Module(name string) (*Module, error) {
	mod, ok := m.modules[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return mod, nil
}

// Modules returns all modules sorted by name
func (m *Map) Modules() []*Module {
	res := make([]*Module, 0, len(m.modules))
	for _, mod := range m.modules {
		res = append(res, mod)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Resolve turns module/instance/register names into a Handle
func (m *Map) Resolve(module string, instance int, reg string) (Handle, error) {
	mod, err := m.Module(module)
	if err != nil {
		return Handle{}, err
	}
	base, err := mod.Base(instance)
	if err != nil {
		return Handle{}, err
	}
	r, err := mod.Register(reg)
	if err != nil {
		return Handle{}, err
	}
	size := r.Size
	if size == 0 {
		size = 1
	}
	return Handle{
		Module:   mod.Name,
		Instance: instance,
		Register: r.Name,
		Addr:     base + r.Offset,
		Size:     size,
	}, nil
}

// ResolveField turns module/instance/register/field names into a FieldHandle
func (m *Map) ResolveField(module string, instance int, reg, field string) (FieldHandle, error) {
	h, err := m.Resolve(module, instance, reg)
	if err != nil {
		return FieldHandle{}, err
	}
	mod, _ := m.Module(module)
	r, _ := mod.Register(reg)
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, field) {
			return FieldHandle{Handle: h, Field: f.Name, Shift: f.Shift, Width: f.Width}, nil
		}
	}
	return FieldHandle{}, fmt.Errorf("register %s has no field %q", h, field)
}

// MustResolve is Resolve that panics, for handles built from static tables
func (m *Map) MustResolve(module string, instance int, reg string) Handle {
	h, err := m.Resolve(module, instance, reg)
	if err != nil {
		panic(err)
	}
	return h
}

// MustResolveField is ResolveField that panics, for handles built from static tables
func (m *Map) MustResolveField(module string, instance int, reg, field string) FieldHandle {
	f, err := m.ResolveField(module, instance, reg, field)
	if err != nil {
		panic(err)
	}
	return f
}
