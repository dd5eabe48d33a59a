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

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/codec"
)

func init() {
	RootCmd.AddCommand(dpllCmd)
	dpllCmd.AddCommand(dpllStateCmd)
	dpllCmd.AddCommand(dpllSetStateCmd)
	dpllCmd.AddCommand(dpllClearStickyCmd)
}

func parseDPLL(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("bad DPLL %q: %v", s, err)
	}
	return n
}

func doDPLLState(w io.Writer, dev *clockmatrix.Device, dpll int) error {
	st, err := dev.LockState(dpll)
	if err != nil {
		return err
	}
	sticky, err := dev.StateChangeSticky(dpll)
	if err != nil {
		return err
	}
	mode, err := dev.OperatingState(dpll)
	if err != nil {
		return err
	}
	word, err := dev.Frequency(dpll)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("dpll", "state", "lock sticky", "state mode", "wr_freq (ppb)")
	err = table.Append([]string{
		fmt.Sprintf("%d", dpll),
		st.String(),
		fmt.Sprintf("%v", sticky),
		mode.String(),
		fmt.Sprintf("%.3f", codec.WordToPPB(word)),
	})
	if err != nil {
		return err
	}
	return table.Render()
}

var dpllCmd = &cobra.Command{
	Use:   "dpll",
	Short: "Inspect and control DPLL channel state",
}

var dpllStateCmd = &cobra.Command{
	Use:   "state N",
	Short: "Print DPLL lock state, sticky bit and operating mode",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		dpll := parseDPLL(args[0])
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := doDPLLState(os.Stdout, dev, dpll); err != nil {
			log.Fatal(err)
		}
	},
}

var dpllSetStateCmd = &cobra.Command{
	Use:   "set-state N NORMAL|FREERUN|HOLDOVER",
	Short: "Force DPLL operating state",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		dpll := parseDPLL(args[0])
		st, err := clockmatrix.ParseOperatingState(args[1])
		if err != nil {
			log.Fatal(err)
		}
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := dev.SetOperatingState(dpll, st); err != nil {
			log.Fatal(err)
		}
		fmt.Println(okString, fmt.Sprintf("DPLL%d set to %s", dpll, st))
	},
}

var dpllClearStickyCmd = &cobra.Command{
	Use:   "clear-sticky N",
	Short: "Clear DPLL lock state change sticky bit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		dpll := parseDPLL(args[0])
		_, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := dev.ClearStateChangeSticky(dpll); err != nil {
			log.Fatal(err)
		}
		fmt.Println(okString, fmt.Sprintf("DPLL%d sticky bits cleared", dpll))
	},
}
