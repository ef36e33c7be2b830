// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"

	"github.com/sprout-ml/sprout/ml/train"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// ExtraMetricFn is any function that will give extra values to display along
// the progress bar. It is called at each update of the progress bar, and
// should return a name (title) and the current value.
type ExtraMetricFn func() (name, value string)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressBarName used to register the progress bar hooks on the train.Loop.
const ProgressBarName = "sprout.ml.train.commandline.progressBar"

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

type progressBarUpdate struct {
	amount int
	step   string
	loss   string
}

// progressBar holds a progressbar being displayed.
type progressBar struct {
	numSteps         int
	lastStepReported int
	bar              *progressbar.ProgressBar
	suffix           string
	pendingAmount    int

	// lipgloss-based rich and asynchronous display for the command-line.
	termenv          *termenv.Output
	statsStyle       lipgloss.Style
	statsTable       *lgtable.Table
	isFirstOutput    bool
	updates          chan progressBarUpdate
	asyncUpdatesDone sync.WaitGroup

	extraMetricFns []ExtraMetricFn
}

// Write implements io.Writer, and appends the current suffix to each line. It
// is used as the writer for the enclosed progressbar.ProgressBar, so the bar
// and the suffix are written in the same write operation.
func (pBar *progressBar) Write(data []byte) (n int, err error) {
	n, err = os.Stdout.Write(data)
	if err != nil {
		return n, err
	}
	_, err = os.Stdout.Write([]byte(pBar.suffix))
	if err != nil {
		return 0, err
	}
	return
}

func (pBar *progressBar) onStart(loop *train.Loop, _ train.Dataset) error {
	pBar.lastStepReported = loop.LoopStep
	if loop.EndStep < 0 {
		pBar.numSteps = 1000 // Guess for now.
	} else {
		pBar.numSteps = loop.EndStep - loop.StartStep
	}
	pBar.bar = progressbar.NewOptions(pBar.numSteps,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar),
	)
	return nil
}

func (pBar *progressBar) onStep(loop *train.Loop, loss *tensors.Tensor) error {
	if pBar.bar.IsFinished() {
		return nil
	}

	// Check whether there is something to update.
	amount := loop.LoopStep + 1 - pBar.lastStepReported // +1 because the current LoopStep is finished.
	if amount <= 0 {
		return nil
	}

	// Suffix to erase spurious characters from previous prints. Erasing to the
	// end of the line ("\033[K") instead causes flickering on some terminals.
	pBar.suffix = "\033[J"
	update := progressBarUpdate{
		amount: amount + pBar.pendingAmount,
		step:   fmt.Sprintf("%s of %s", humanize.Comma(int64(loop.LoopStep)), humanize.Comma(int64(loop.EndStep))),
		loss:   lossString(loss),
	}
	// Enqueue the update to be asynchronously printed -- if the terminal is
	// slower than the training, drop the update and carry the step count over.
	select {
	case pBar.updates <- update:
		pBar.pendingAmount = 0
	default:
		pBar.pendingAmount = update.amount
	}
	pBar.lastStepReported = loop.LoopStep + 1
	return nil
}

func (pBar *progressBar) onEnd(_ *train.Loop, _ *tensors.Tensor) error {
	close(pBar.updates)
	pBar.asyncUpdatesDone.Wait()
	pBar.termenv.ShowCursor()
	fmt.Println()
	return nil
}

// lossString pretty-prints a scalar loss tensor.
func lossString(loss *tensors.Tensor) string {
	if loss == nil {
		return "?"
	}
	return fmt.Sprintf("%.4g", tensors.ToScalar[float64](ops.ConvertDType(loss, dtypes.Float64)))
}

// FormatDuration prints a duration with its value rounded to two decimals:
// "1.502702322s" becomes "1.50s". Durations spanning more than one unit, like
// "1m30s", are returned as time.Duration formats them.
func FormatDuration(d time.Duration) string {
	s := d.String()
	unitStart := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	if unitStart <= 0 {
		return s
	}
	value, err := strconv.ParseFloat(s[:unitStart], 64)
	if err != nil {
		return s
	}
	unit := s[unitStart:]
	if strings.ContainsFunc(unit, func(r rune) bool { return r >= '0' && r <= '9' }) {
		// More than one unit.
		return s
	}
	return fmt.Sprintf("%.2f%s", value, unit)
}

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// AttachProgressBar creates a commandline progress bar and attaches it to the
// Loop, so that every time the Loop is run, it displays a progress bar with
// the progression, the batch loss and the median step duration.
//
// The associated data is attached to the train.Loop, so nothing is returned.
//
// Optionally, one can provide extraMetrics: functions that are called at every
// update of the progress bar and should return a name (title) and a value to
// be included in the updated print-out.
func AttachProgressBar(loop *train.Loop, extraMetrics ...ExtraMetricFn) {
	pBar := &progressBar{
		isFirstOutput:  true,
		extraMetricFns: extraMetrics,
		termenv:        termenv.NewOutput(os.Stdout),
		statsStyle:     lipgloss.NewStyle().PaddingLeft(8),
		updates:        make(chan progressBarUpdate, 100), // Large buffer so things are not blocked.
	}
	pBar.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	pBar.asyncUpdatesDone.Add(1)
	go func() {
		// Asynchronously draw updates: this is handy if the training is faster
		// than the terminal, in particular if running on cloud, with a
		// relatively slow network connection.
		for update := range pBar.updates {
			// Exhaust the updates in the buffer:
			amount := update.amount
		exhaust:
			for {
				select {
				case newUpdate, ok := <-pBar.updates:
					if !ok {
						break exhaust
					}
					amount += newUpdate.amount
					update = newUpdate
				default:
					break exhaust
				}
			}

			// Create the table to be printed.
			pBar.statsTable.Data(lgtable.NewStringData())
			pBar.statsTable.Row("Step", update.step)
			pBar.statsTable.Row("Batch loss", update.loss)
			pBar.statsTable.Row("Median train step duration", FormatDuration(loop.MedianTrainStepDuration()))
			for _, extraMetric := range pBar.extraMetricFns {
				name, value := extraMetric()
				pBar.statsTable.Row(name, value)
			}

			// Clear the previous lines that will be overwritten.
			pBar.termenv.HideCursor()
			if !pBar.isFirstOutput {
				// Table rows plus its two border lines, plus the progress bar
				// line and the blank line after it.
				numLinesToBackup := 3 + len(pBar.extraMetricFns) + 2 + 2
				pBar.termenv.CursorPrevLine(numLinesToBackup)
			}
			pBar.isFirstOutput = false

			// Print update.
			fmt.Println(pBar.statsStyle.Render(pBar.statsTable.String()))
			_ = pBar.bar.Add(amount) // Prints progress bar line.
			fmt.Println()
			pBar.termenv.ShowCursor()
			time.Sleep(maxUpdateFrequency)
		}
		pBar.asyncUpdatesDone.Done()
	}()
	loop.OnStart(ProgressBarName, 0, pBar.onStart)
	loop.OnStep(ProgressBarName, 0, pBar.onStep)
	loop.OnEnd(ProgressBarName, 0, pBar.onEnd)
}
