// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// lineage inspects the event logs of a dataflow engine: replaying a log
// prints the registered dataset graph and buffered exceptions; verifying
// two logs of the same computation surfaces checksum divergence.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose         bool
	checksumEnabled bool
)

var rootCmd = &cobra.Command{
	Use:   "lineage [command] (flags)",
	Short: "lineage event-log inspection tool",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		replayCmd,
		verifyCmd,
	)

	for _, cmd := range []*cobra.Command{replayCmd, verifyCmd} {
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "log every anomaly as it is encountered")
		cmd.Flags().BoolVar(
			&checksumEnabled, "checksum-enabled", true, "verify checksum entries while replaying")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// cliLogger adapts logrus to the base.Logger contract.
type cliLogger struct {
	log *logrus.Logger
}

func newCLILogger() cliLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if !verbose {
		log.SetLevel(logrus.WarnLevel)
	}
	return cliLogger{log: log}
}

func (l cliLogger) Infof(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

func (l cliLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l cliLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatalf(format, args...)
}
