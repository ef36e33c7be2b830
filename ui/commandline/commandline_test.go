// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package commandline_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ui/commandline"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", commandline.FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "3.14ms", commandline.FormatDuration(3141592*time.Nanosecond))
	assert.Equal(t, "2.00µs", commandline.FormatDuration(2*time.Microsecond))
	assert.Equal(t, "-1.50s", commandline.FormatDuration(-1500*time.Millisecond))
	// More than one unit is left as time.Duration formats it.
	assert.Equal(t, "1m30s", commandline.FormatDuration(90*time.Second))
}

func TestWriteModelSummary(t *testing.T) {
	type model struct {
		Hidden, Output *nn.Dense
	}
	m := &model{
		Hidden: nn.NewDense(4).WithName("hidden").WithInputDim(3),
		Output: nn.NewDense(1).WithName("output").WithInputDim(4),
	}
	var buf bytes.Buffer
	commandline.WriteModelSummary(&buf, "My Model", m)
	output := buf.String()
	assert.Contains(t, output, "My Model")
	assert.Contains(t, output, "# parameters")
	// 3*4+4 + 4*1+1 = 21 parameters.
	assert.Contains(t, output, "21")
	assert.Contains(t, output, "Hidden.Weights")
	assert.Contains(t, output, "output/bias")
}

func TestWriteModelSummaryUnbuilt(t *testing.T) {
	var buf bytes.Buffer
	commandline.WriteModelSummary(&buf, "Empty", nn.NewDense(2))
	assert.Contains(t, buf.String(), "not yet built")
}
