// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// sprout_inspect reports on checkpoints saved with the checkpoints package,
// without needing the program that created them:
//
//	sprout_inspect [flags] <checkpoint_dir>
//
// By default it prints both the summary and the variables table of the most
// recent checkpoint in the directory. Use -values to also include value
// statistics per variable.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/sprout-ml/sprout/checkpoints"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/tensors"
)

var (
	flagSummary = flag.Bool("summary", false, "Display a summary of the checkpoint: "+
		"number of variables, parameters and bytes.")
	flagVars = flag.Bool("vars", false, "Lists the variables stored in the checkpoint, "+
		"with their path in the model, shape and size.")
	flagValues = flag.Bool("values", false, "Include value statistics in the variables table: "+
		"the value itself for scalar variables, and MAV (mean absolute value), RMS (root mean "+
		"square) and MaxAV (max absolute value) for float variables. Implies -vars.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing checkpoint directory to read from. See 'sprout_inspect -help'.")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'sprout_inspect -help'.")
		os.Exit(1)
	}
	if *flagValues {
		*flagVars = true
	}
	if !*flagSummary && !*flagVars {
		// Without flags, report everything except the value statistics.
		*flagSummary, *flagVars = true, true
	}
	report(args[0])
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				// Even row style.
				s = oddRowStyle
			default:
				// Odd row style
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func report(checkpointDir string) {
	inventory := must.M1(checkpoints.Inspect(checkpointDir))

	if *flagSummary {
		fmt.Println(titleStyle.Render("Summary"))
		var numParams int
		var numBytes uintptr
		for _, sv := range inventory.Variables {
			shape := sv.Value.Shape()
			numParams += shape.Size()
			numBytes += shape.Memory()
		}
		table := newPlainTable()
		table.Row("directory", inventory.Dir)
		table.Row("checkpoint", inventory.BaseName)
		table.Row("# variables", humanize.Comma(int64(len(inventory.Variables))))
		table.Row("# parameters", humanize.Comma(int64(numParams)))
		table.Row("# bytes", humanize.Bytes(uint64(numBytes)))
		fmt.Println(table.Render())
	}

	if *flagVars {
		fmt.Println(titleStyle.Render("Variables"))
		table := newPlainTable()
		headers := []string{"Path", "Scope/Name", "Shape", "Size", "Bytes"}
		if *flagValues {
			headers = append(headers, "Scalar/MAV", "RMS", "MaxAV")
		}
		table.Headers(headers...)
		var rows [][]string
		for _, sv := range inventory.Variables {
			shape := sv.Value.Shape()
			name := sv.Name
			if sv.Scope != "" {
				name = sv.Scope + "/" + sv.Name
			}
			row := []string{
				sv.Path, name, shape.String(),
				humanize.Comma(int64(shape.Size())),
				humanize.Bytes(uint64(shape.Memory())),
			}
			if *flagValues {
				row = append(row, valueStats(sv.Value)...)
			}
			rows = append(rows, row)
		}
		slices.SortFunc(rows, func(a, b []string) int {
			return strings.Compare(a[0], b[0])
		})
		for _, row := range rows {
			table.Row(row...)
		}
		fmt.Println(table.Render())
	}
}

// valueStats returns the "Scalar/MAV", "RMS" and "MaxAV" columns for a
// variable value: the value itself for scalars, aggregated statistics for
// float tensors, and empty columns otherwise.
func valueStats(value *tensors.Tensor) []string {
	if value.Shape().Size() == 1 {
		return []string{fmt.Sprintf("%8v", value.Value()), "", ""}
	}
	if !value.DType().IsFloat() {
		return []string{"", "", ""}
	}
	x := ops.ConvertDType(value, dtypes.Float64)
	mav := tensors.ToScalar[float64](ops.ReduceMean(ops.Abs(x)))
	rms := tensors.ToScalar[float64](ops.Sqrt(ops.ReduceMean(ops.Mul(x, x))))
	maxAV := tensors.ToScalar[float64](ops.ReduceMax(ops.Abs(x)))
	return []string{
		fmt.Sprintf("%.3g", mav),
		fmt.Sprintf("%.3g", rms),
		fmt.Sprintf("%.3g", maxAV),
	}
}
