// Copyright 2026 The Lineage Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/lineage/dataflow"
	"github.com/cockroachdb/lineage/eventlog"
	"github.com/cockroachdb/lineage/replay"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <log-path>",
	Short: "replay an event log and print the registered dataset graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := newCLILogger()
	eng := dataflow.NewEngine(dataflow.Options{Logger: logger})
	r := replay.NewReplayer(eng, replay.Options{Logger: logger})
	if err := r.ReplayFile(args[0]); err != nil {
		return err
	}

	stats := r.Stats()
	fmt.Printf("replayed %s: %d registrations, %d tasks, %d checksums, %d exceptions\n",
		args[0], stats.Registrations, stats.Tasks, stats.Checksums, stats.Exceptions)

	printDatasets(r)
	printExceptions(r)
	if checksumEnabled {
		printMismatches(r.Verifier())
	}
	if n := len(r.Anomalies()); n > 0 {
		fmt.Printf("%d anomalies (rerun with --verbose for details)\n", n)
	}
	return nil
}

func printDatasets(r *replay.Replayer) {
	ids := r.DatasetIDs()
	sort.Ints(ids)
	if len(ids) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Op", "Func", "Partitions", "Dependencies"})
	for _, id := range ids {
		d, _ := r.Dataset(id)
		var deps []string
		for _, dep := range d.Dependencies() {
			deps = append(deps, fmt.Sprintf("%s %d", dep.Kind, dep.Parent.ID()))
		}
		table.Append([]string{
			strconv.Itoa(d.ID()),
			d.Transform().OpName(),
			dataflow.FuncName(d.Transform()),
			strconv.Itoa(d.NumPartitions()),
			strings.Join(deps, ", "),
		})
	}
	table.Render()
}

func printExceptions(r *replay.Replayer) {
	for _, e := range r.Exceptions() {
		switch ev := e.(type) {
		case eventlog.LocalException:
			fmt.Printf("local exception in task %s (dataset %d partition %d): %s\n",
				ev.TaskID, ev.DatasetID, ev.Partition, ev.Message)
		case eventlog.RemoteException:
			fmt.Printf("remote exception in task %s on %s: %s\n", ev.TaskID, ev.HostPort, ev.Message)
		}
	}
}

func printMismatches(v *eventlog.Verifier) {
	mismatches := v.Mismatches()
	if len(mismatches) == 0 {
		fmt.Println("checksums: no mismatches")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Kind", "Dataset", "Partition", "Block", "Expected", "Got"})
	for _, m := range mismatches {
		table.Append([]string{
			m.Kind.String(),
			strconv.Itoa(m.DatasetID),
			strconv.Itoa(m.Partition),
			m.BlockID,
			fmt.Sprintf("%#x", m.Expected),
			fmt.Sprintf("%#x", m.Got),
		})
	}
	table.Render()
}
