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

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/cmdiscipline/register"
)

// flags
var (
	regFieldFlag   string
	regTriggerFlag bool
)

func init() {
	RootCmd.AddCommand(readCmd)
	RootCmd.AddCommand(writeCmd)
	readCmd.Flags().StringVarP(&regFieldFlag, "field", "f", "", "read a single bit field")
	writeCmd.Flags().StringVarP(&regFieldFlag, "field", "f", "", "read-modify-write a single bit field")
	writeCmd.Flags().BoolVarP(&regTriggerFlag, "trigger", "t", false, "rewrite the register's first byte after the write so the chip latches it")
}

// toLittleEndian packs the low size bytes of v
func toLittleEndian(v uint64, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// parseValue accepts decimal, 0x hex and negative values, the latter as two's complement
func parseValue(s string, size int) (uint64, error) {
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		if size < 8 && u>>(8*size) != 0 {
			return 0, fmt.Errorf("value %s does not fit in %d bytes", s, size)
		}
		return u, nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", s, err)
	}
	if size < 8 && v < -(int64(1)<<(8*size-1)) {
		return 0, fmt.Errorf("value %s does not fit in %d bytes", s, size)
	}
	return uint64(v), nil
}

func printRegister(w io.Writer, h register.Handle, b []byte) {
	v := littleEndian(b)
	fmt.Fprintf(w, "%s = 0x%X (%d) [% X]\n", h, v, v, b)
}

func doRead(w io.Writer, a *register.Adapter, module string, instance int, reg, field string) error {
	if field != "" {
		f, err := register.ClockMatrix.ResolveField(module, instance, reg, field)
		if err != nil {
			return err
		}
		v, err := a.ReadField(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s = %d\n", f, v)
		return nil
	}
	h, err := register.ClockMatrix.Resolve(module, instance, reg)
	if err != nil {
		return err
	}
	b, err := a.ReadBytes(h)
	if err != nil {
		return err
	}
	printRegister(w, h, b)
	return nil
}

func doWrite(w io.Writer, a *register.Adapter, module string, instance int, reg, field, value string, trigger bool) error {
	h, err := register.ClockMatrix.Resolve(module, instance, reg)
	if err != nil {
		return err
	}
	if field != "" {
		f, err := register.ClockMatrix.ResolveField(module, instance, reg, field)
		if err != nil {
			return err
		}
		v, err := parseValue(value, 1)
		if err != nil {
			return err
		}
		if err := a.WriteField(f, uint8(v)); err != nil {
			return err
		}
	} else {
		v, err := parseValue(value, h.Size)
		if err != nil {
			return err
		}
		if err := a.WriteBytes(h, toLittleEndian(v, h.Size)); err != nil {
			return err
		}
	}
	if trigger {
		if err := a.Trigger(h); err != nil {
			return err
		}
	}
	b, err := a.ReadBytes(h)
	if err != nil {
		return err
	}
	printRegister(w, h, b)
	return nil
}

func parseInstance(s string) int {
	instance, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("bad instance %q: %v", s, err)
	}
	return instance
}

var readCmd = &cobra.Command{
	Use:   "read MODULE INSTANCE REGISTER",
	Short: "Read a register by name",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		instance := parseInstance(args[1])
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := doRead(os.Stdout, dev.Adapter(), args[0], instance, args[2], regFieldFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var writeCmd = &cobra.Command{
	Use:   "write MODULE INSTANCE REGISTER VALUE",
	Short: "Write a register by name and print it back",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		instance := parseInstance(args[1])
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := doWrite(os.Stdout, dev.Adapter(), args[0], instance, args[2], regFieldFlag, args[3], regTriggerFlag); err != nil {
			log.Fatal(err)
		}
	},
}
