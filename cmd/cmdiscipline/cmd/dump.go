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
	"strings"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/cmdiscipline/register"
)

func init() {
	RootCmd.AddCommand(dumpCmd)
}

// littleEndian assembles register bytes into a value, lowest address first
func littleEndian(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func formatFields(r register.Register, b byte) string {
	fields := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		fields = append(fields, fmt.Sprintf("%s=%d", f.Name, (b&f.Mask())>>f.Shift))
	}
	return strings.Join(fields, " ")
}

// dumpRows reads every register of a module instance
func dumpRows(a *register.Adapter, module string, instance int) ([][]string, error) {
	mod, err := register.ClockMatrix.Module(module)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(mod.Registers))
	for _, r := range mod.Registers {
		h, err := register.ClockMatrix.Resolve(mod.Name, instance, r.Name)
		if err != nil {
			return nil, err
		}
		b, err := a.ReadBytes(h)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []string{
			r.Name,
			fmt.Sprintf("0x%04X", h.Addr),
			fmt.Sprintf("% X", b),
			fmt.Sprintf("%d", littleEndian(b)),
			formatFields(r, b[0]),
		})
	}
	return rows, nil
}

func doDump(w io.Writer, a *register.Adapter, module string, instance int) error {
	rows, err := dumpRows(a, module, instance)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("register", "address", "bytes", "value", "fields")
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func moduleNames() string {
	names := []string{}
	for _, m := range register.ClockMatrix.Modules() {
		names = append(names, m.Name)
	}
	return strings.Join(names, ", ")
}

var dumpCmd = &cobra.Command{
	Use:   "dump MODULE [INSTANCE]",
	Short: "Print all registers of a module instance",
	Long:  "Print all registers of a module instance. Modules: " + moduleNames(),
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		instance := 0
		if len(args) > 1 {
			var err error
			if instance, err = strconv.Atoi(args[1]); err != nil {
				log.Fatalf("bad instance %q: %v", args[1], err)
			}
		}
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := doDump(os.Stdout, dev.Adapter(), args[0], instance); err != nil {
			log.Fatal(err)
		}
	},
}
