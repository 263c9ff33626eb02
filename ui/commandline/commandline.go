// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools to follow and report super-resolution
// runs on the command line.
package commandline

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/superres/pkg/superres"
)

var (
	oddRowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).Padding(0, 1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return s
		})
}

// ReportResult writes a summary table of the result of a run to w.
func ReportResult(w io.Writer, result *superres.Result) {
	table := newPlainTable()
	table.Row("run", result.RunID)
	table.Row("images", humanize.Comma(int64(result.NumImages)))
	table.Row("batches", humanize.Comma(int64(result.NumBatches)))
	table.Row("encoding steps", humanize.Comma(int64(result.EncodeSteps)))
	table.Row("elapsed", FormatDuration(result.Elapsed))
	if result.NumImages > 0 {
		table.Row("per image", FormatDuration(result.Elapsed/timeDivisor(result.NumImages)))
	}
	if result.MetricName != "" && len(result.Scores) > 0 {
		table.Row("mean "+result.MetricName, fmt.Sprintf("%.3f", result.MeanScore))
	}
	if result.GridPath != "" {
		grid := result.GridPath
		if info, err := os.Stat(result.GridPath); err == nil {
			grid = fmt.Sprintf("%s (%s)", grid, humanize.Bytes(uint64(info.Size())))
		}
		table.Row("grid", grid)
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render("Summary"))
	_, _ = fmt.Fprintln(w, table.Render())
}
