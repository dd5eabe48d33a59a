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

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	i2cPageRegister = 0xFC
	i2cOffsetMask   = 0x7F
)

// I2C talks to the chip over I2C in 1-byte addressing mode
type I2C struct {
	mux    sync.Mutex
	dev    Txer
	closer func() error
}

// NewI2C returns I2C bus on top of a device handle
func NewI2C(dev Txer) *I2C {
	return &I2C{dev: dev}
}

// OpenI2C opens i2c bus by name (like /dev/i2c-1 or 1) and binds to the chip address
func OpenI2C(name string, addr uint16) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing periph host: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", name, err)
	}
	log.Debugf("i2c: opened %s, chip at 0x%02x", name, addr)
	d := NewI2C(&i2c.Dev{Addr: addr, Bus: b})
	d.closer = b.Close
	return d, nil
}

func (d *I2C) setPage(addr uint16) error {
	w := append([]byte{i2cPageRegister}, pageBytes(addr)...)
	if err := d.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("i2c page select for 0x%04x: %w", addr, err)
	}
	return nil
}

// Read fills p starting at addr, splitting at page boundaries
func (d *I2C) Read(addr uint16, p []byte) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	for _, c := range splitPages(addr, len(p)) {
		if err := d.setPage(c.addr); err != nil {
			return err
		}
		if err := d.dev.Tx([]byte{byte(c.addr & i2cOffsetMask)}, p[c.start:c.end]); err != nil {
			return fmt.Errorf("i2c read 0x%04x (%d bytes): %w", c.addr, c.end-c.start, err)
		}
	}
	return nil
}

// Write writes p starting at addr, splitting at page boundaries
func (d *I2C) Write(addr uint16, p []byte) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	for _, c := range splitPages(addr, len(p)) {
		if err := d.setPage(c.addr); err != nil {
			return err
		}
		w := make([]byte, 0, c.end-c.start+1)
		w = append(w, byte(c.addr&i2cOffsetMask))
		w = append(w, p[c.start:c.end]...)
		if err := d.dev.Tx(w, nil); err != nil {
			return fmt.Errorf("i2c write 0x%04x (%d bytes): %w", c.addr, len(w)-1, err)
		}
	}
	return nil
}

// Close releases the bus
func (d *I2C) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
