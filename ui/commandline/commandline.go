// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains helpers to display models and the training
// progress on the command line: WriteModelSummary prints the variables of a
// model as tables, and AttachProgressBar hooks a progress bar to a train.Loop.
package commandline

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/ml/nn"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// newPlainTable creates a table with alternating row styles. The alignments
// are given per column, the last one repeating for any remaining columns.
func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
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
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
}

// WriteModelSummary writes the sizes and variables of the model to w, as
// rendered tables: first the totals ("# variables", "# parameters",
// "# bytes"), then one row per variable with its path and shape.
//
// Unbuilt layers have no variables yet, so a model summary is usually printed
// after the first call (or after nn.BuildLayers).
//
// It panics if the model structure is invalid -- see nn.NamedVariables.
func WriteModelSummary(w io.Writer, name string, model any) {
	fmt.Fprintln(w, titleStyle.Render(name))

	summary := newPlainTable(lipgloss.Right, lipgloss.Left)
	summary.Row("# variables", humanize.Comma(int64(nn.NumVariables(model))))
	summary.Row("# parameters", humanize.Comma(int64(nn.NumParams(model))))
	summary.Row("# bytes", humanize.Bytes(uint64(nn.Memory(model))))
	fmt.Fprintln(w, summary.Render())

	table := newPlainTable(lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right)
	table.Headers("Path", "Scope/Name", "Shape", "Size", "Bytes")
	numVariables := 0
	for pv, err := range nn.NamedVariables(model) {
		if err != nil {
			exceptions.Panicf("WriteModelSummary: %v", err)
		}
		shape := pv.Variable.Shape()
		table.Row(pv.Path, pv.Variable.String(), shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())))
		numVariables++
	}
	if numVariables == 0 {
		table.Row("(no variables: model not yet built)", "", "", "", "")
	}
	fmt.Fprintln(w, table.Render())
}
