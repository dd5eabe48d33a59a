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
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/cmdiscipline/daemon"
)

func init() {
	RootCmd.AddCommand(configCmd)
}

func doConfig(w io.Writer, cfg *daemon.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()

		cfg, err := prepareConfig(cmd, daemon.Overrides{})
		if err != nil {
			log.Fatal(err)
		}
		if err := doConfig(os.Stdout, cfg); err != nil {
			log.Fatal(err)
		}
	},
}
