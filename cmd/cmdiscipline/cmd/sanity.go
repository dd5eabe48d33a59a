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

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/cmdiscipline/clockmatrix"
	"github.com/facebook/cmdiscipline/daemon"
	"github.com/facebook/cmdiscipline/servo"
)

func init() {
	RootCmd.AddCommand(sanityCmd)
}

func printReport(w io.Writer, r *daemon.Report) error {
	fmt.Fprintf(w, "firmware %s\n", r.Info)

	table := tablewriter.NewWriter(w)
	table.Header("dpll", "fod m", "fod n", "fod hz", "state")
	for _, f := range r.FODs {
		err := table.Append([]string{
			fmt.Sprintf("%d", f.DPLL),
			fmt.Sprintf("%d", f.M),
			fmt.Sprintf("%d", f.N),
			fmt.Sprintf("%.3f", f.Hz),
			f.State.String(),
		})
		if err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	table = tablewriter.NewWriter(w)
	table.Header("output", "fod", "fod hz", "out_div", "out hz", "out_phase_adj")
	for _, o := range r.Outputs {
		err := table.Append([]string{
			fmt.Sprintf("%d", o.Output),
			fmt.Sprintf("%d", o.FOD),
			fmt.Sprintf("%.3f", o.FODHz),
			fmt.Sprintf("%d", o.OutDiv),
			fmt.Sprintf("%.6f", o.OutHz),
			fmt.Sprintf("%d", o.PhaseAdj),
		})
		if err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "phase raw=%d wrapped=%.12f s\n", r.PhaseRaw, r.Phase)
	for _, c := range r.Checks {
		status := okString
		if !c.OK {
			status = failString
		}
		fmt.Fprintln(w, status, c.Name, c.Detail)
	}
	return nil
}

func doSanity(w io.Writer, dev *clockmatrix.Device, cfg *servo.Config) error {
	r, err := daemon.Sanity(dev, cfg)
	if err != nil {
		return err
	}
	if err := printReport(w, r); err != nil {
		return err
	}
	if !r.OK() {
		return fmt.Errorf("sanity checks failed")
	}
	return nil
}

var sanityCmd = &cobra.Command{
	Use:   "sanity",
	Short: "Print FOD, output and phase registers the servo depends on and check they make sense",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()

		cfg, dev, cleanup, err := openDevice(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()
		if err := doSanity(os.Stdout, dev, cfg.Servo); err != nil {
			log.Fatal(err)
		}
	},
}
