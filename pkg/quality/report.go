// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quality

import (
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DataFrame returns the entries as a table with the columns "image" and metricName.
func DataFrame(entries []Entry, metricName string) dataframe.DataFrame {
	ids := make([]string, len(entries))
	scores := make([]float64, len(entries))
	for ii, e := range entries {
		ids[ii] = e.ID
		scores[ii] = e.Score
	}
	return dataframe.New(
		series.New(ids, series.String, "image"),
		series.New(scores, series.Float, metricName),
	)
}

// WriteCSV writes the entries as CSV, with a header line.
func WriteCSV(w io.Writer, entries []Entry, metricName string) error {
	df := DataFrame(entries, metricName)
	if df.Err != nil {
		return errors.Wrapf(df.Err, "failed to build scores table")
	}
	return errors.Wrap(df.WriteCSV(w), "failed to write scores as CSV")
}

// SaveCSV writes the entries as CSV to filePath.
func SaveCSV(filePath string, entries []Entry, metricName string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err = WriteCSV(f, entries, metricName); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

// HistogramBins is the number of bins used by SaveHistogram.
var HistogramBins = 20

// SaveHistogram plots the histogram of the scores to filePath. The format is taken from
// the file extension (e.g. ".png", ".svg").
func SaveHistogram(filePath string, entries []Entry, metricName string) error {
	if len(entries) == 0 {
		return errors.New("no scores to plot")
	}
	values := make(plotter.Values, len(entries))
	for ii, e := range entries {
		values[ii] = e.Score
	}
	p := plot.New()
	p.Title.Text = "Distribution of " + metricName
	p.X.Label.Text = metricName
	p.Y.Label.Text = "# images"
	hist, err := plotter.NewHist(values, HistogramBins)
	if err != nil {
		return errors.Wrapf(err, "failed to build histogram of %s", metricName)
	}
	p.Add(hist)
	if err = p.Save(6*vg.Inch, 4*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save histogram to %q", filePath)
	}
	return nil
}
