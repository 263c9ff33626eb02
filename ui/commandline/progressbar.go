// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/superres/pkg/superres"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// progressBar follows a superres.Runner: one bar tick per image, and a table with
// the stats of the last batch printed above it.
type progressBar struct {
	w             io.Writer
	bar           *progressbar.ProgressBar
	termenv       *termenv.Output
	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool
	numRows       int

	scoreSum   float64
	scoreCount int
}

// AttachProgressBar attaches a progress bar to the runner, written to w, that is updated
// after every batch with the number of images completed, the duration of the batch and,
// if the runner has a quality metric, the running mean score.
func AttachProgressBar(runner *superres.Runner, w io.Writer) {
	pBar := &progressBar{
		w:          w,
		termenv:    termenv.NewOutput(w),
		statsStyle: lipgloss.NewStyle().PaddingLeft(8),
		statsTable: lgtable.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if col == 0 {
					return rightAlignedStyle
				}
				return normalStyle
			}),
	}
	runner.OnStart(pBar.onStart)
	runner.OnBatch(pBar.onBatch)
	runner.OnEnd(pBar.onEnd)
}

func (pBar *progressBar) onStart(r *superres.Runner) {
	pBar.isFirstOutput = true
	pBar.scoreSum, pBar.scoreCount = 0, 0
	pBar.bar = progressbar.NewOptions(r.Plan().NumPending(),
		progressbar.OptionSetDescription("      "),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar.w),
	)
}

func (pBar *progressBar) onBatch(r *superres.Runner, info superres.BatchInfo) {
	for _, score := range info.Scores {
		pBar.scoreSum += score
		pBar.scoreCount++
	}
	pBar.statsTable.Data(lgtable.NewStringData())
	pBar.statsTable.Row("Batch", fmt.Sprintf("%s of %s",
		humanize.Comma(int64(info.Index+1)), humanize.Comma(int64(r.Plan().NumBatches()))))
	pBar.statsTable.Row("Images", fmt.Sprintf("%s of %s",
		humanize.Comma(int64(info.Complete)), humanize.Comma(int64(r.Plan().NumPending()))))
	pBar.statsTable.Row("Last batch duration", FormatDuration(info.Elapsed))
	numRows := 3
	if pBar.scoreCount > 0 {
		pBar.statsTable.Row("Mean score", fmt.Sprintf("%.3f", pBar.scoreSum/float64(pBar.scoreCount)))
		numRows++
	}

	// Clear the previous table and bar, which are overwritten.
	pBar.termenv.HideCursor()
	if !pBar.isFirstOutput {
		pBar.termenv.CursorPrevLine(pBar.numRows + 2 + 1)
	}
	pBar.isFirstOutput = false
	pBar.numRows = numRows

	_, _ = fmt.Fprintln(pBar.w, pBar.statsStyle.Render(pBar.statsTable.String()))
	_ = pBar.bar.Add(len(info.Names))
	_, _ = fmt.Fprintln(pBar.w)
	pBar.termenv.ShowCursor()
}

func (pBar *progressBar) onEnd(_ *superres.Runner, result *superres.Result) {
	if pBar.bar != nil && !pBar.bar.IsFinished() {
		_ = pBar.bar.Finish()
	}
	_, _ = fmt.Fprintf(pBar.w, "\n%s images done in %s\n",
		humanize.Comma(int64(result.NumImages)), FormatDuration(result.Elapsed.Round(time.Millisecond)))
}
