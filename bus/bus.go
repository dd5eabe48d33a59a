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

// Package bus implements byte transports to the ClockMatrix register space.
package bus

import (
	"fmt"
)

// PageSize is the size of the register window addressable after a page select
const PageSize = 0x80

// Supported bus types
const (
	TypeSPI = "spi"
	TypeI2C = "i2c"
	TypeSim = "sim"
)

// Bus is a byte addressable register transport
type Bus interface {
	// Read fills p starting at register address addr
	Read(addr uint16, p []byte) error
	// Write writes p starting at register address addr
	Write(addr uint16, p []byte) error
	Close() error
}

// Config describes how to reach the chip
type Config struct {
	Type    string `yaml:"type" validate:"oneof=spi i2c sim"`
	Device  string `yaml:"device"`
	SpeedHz int64  `yaml:"speed_hz" validate:"gte=0"`
	Mode    int    `yaml:"mode" validate:"gte=0,lte=3"`
	Address uint16 `yaml:"address" validate:"lte=127"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() Config {
	return Config{
		Type:    TypeSPI,
		Device:  "/dev/spidev7.0",
		SpeedHz: 1000000,
		Mode:    0,
		Address: 0x5B,
	}
}

// Validate Config is sane
func (c *Config) Validate() error {
	switch c.Type {
	case TypeSPI, TypeI2C:
		if c.Device == "" {
			return fmt.Errorf("device must be specified for %q bus", c.Type)
		}
	case TypeSim:
	default:
		return fmt.Errorf("type must be either %q, %q or %q", TypeSPI, TypeI2C, TypeSim)
	}
	return nil
}

// pageBytes returns the 4 byte page register value selecting the window that holds addr
func pageBytes(addr uint16) []byte {
	return []byte{byte(addr & 0x80), byte(addr >> 8), 0x10, 0x20}
}

// chunk is a slice of a transfer that does not cross a page boundary
type chunk struct {
	addr  uint16
	start int
	end   int
}

// splitPages splits a transfer of n bytes at addr on page boundaries
func splitPages(addr uint16, n int) []chunk {
	var chunks []chunk
	off := 0
	for off < n {
		room := PageSize - int(addr&(PageSize-1))
		size := n - off
		if size > room {
			size = room
		}
		chunks = append(chunks, chunk{addr: addr, start: off, end: off + size})
		addr += uint16(size)
		off += size
	}
	return chunks
}
