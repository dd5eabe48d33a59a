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
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	spiPageRegister = 0x7C
	spiReadBit      = 0x80
	spiOffsetMask   = 0x7F
)

// Txer performs a single full duplex transfer
type Txer interface {
	Tx(w, r []byte) error
}

// SPI talks to the chip over SPI in 1-byte addressing mode.
// Every access selects the page first, then reads or writes within it.
type SPI struct {
	mux    sync.Mutex
	conn   Txer
	closer func() error
}

// NewSPI returns SPI bus on top of an established connection
func NewSPI(conn Txer) *SPI {
	return &SPI{conn: conn}
}

// OpenSPI opens spidev port by name (like /dev/spidev7.0 or SPI7.0)
func OpenSPI(dev string, speedHz int64, mode int) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing periph host: %w", err)
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("opening spi port %q: %w", dev, err)
	}
	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode(mode), 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connecting to spi port %q: %w", dev, err)
	}
	log.Debugf("spi: opened %s at %d Hz mode %d", dev, speedHz, mode)
	s := NewSPI(conn)
	s.closer = port.Close
	return s, nil
}

func (s *SPI) setPage(addr uint16) error {
	w := append([]byte{spiPageRegister}, pageBytes(addr)...)
	if err := s.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("spi page select for 0x%04x: %w", addr, err)
	}
	return nil
}

// Read fills p starting at addr, splitting at page boundaries
func (s *SPI) Read(addr uint16, p []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, c := range splitPages(addr, len(p)) {
		if err := s.setPage(c.addr); err != nil {
			return err
		}
		n := c.end - c.start
		tx := make([]byte, n+1)
		rx := make([]byte, n+1)
		tx[0] = spiReadBit | byte(c.addr&spiOffsetMask)
		if err := s.conn.Tx(tx, rx); err != nil {
			return fmt.Errorf("spi read 0x%04x (%d bytes): %w", c.addr, n, err)
		}
		copy(p[c.start:c.end], rx[1:])
	}
	return nil
}

// Write writes p starting at addr, splitting at page boundaries
func (s *SPI) Write(addr uint16, p []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, c := range splitPages(addr, len(p)) {
		if err := s.setPage(c.addr); err != nil {
			return err
		}
		w := make([]byte, 0, c.end-c.start+1)
		w = append(w, byte(c.addr&spiOffsetMask))
		w = append(w, p[c.start:c.end]...)
		if err := s.conn.Tx(w, nil); err != nil {
			return fmt.Errorf("spi write 0x%04x (%d bytes): %w", c.addr, len(w)-1, err)
		}
	}
	return nil
}

// Close releases the port
func (s *SPI) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
