// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/config"
	"github.com/gomlx/superres/pkg/quality"
	"github.com/gomlx/superres/pkg/sampling"
	"github.com/gomlx/superres/pkg/superres"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567*time.Microsecond))
	assert.Equal(t, "15.00ms", FormatDuration(15*time.Millisecond))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
}

func TestReportResult(t *testing.T) {
	var buf bytes.Buffer
	ReportResult(&buf, &superres.Result{
		RunID:       "abc",
		NumBatches:  2,
		NumImages:   1234,
		EncodeSteps: 100,
		MetricName:  "laplacian_variance",
		Scores:      []quality.Entry{{ID: "a.png", Score: 1}},
		MeanScore:   12.5,
		Elapsed:     2 * time.Second,
	})
	out := buf.String()
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "mean laplacian_variance")
	assert.Contains(t, out, "12.500")
	assert.NotContains(t, out, "grid")
}

func TestAttachProgressBar(t *testing.T) {
	inputDir := t.TempDir()
	for ii := range 3 {
		img := imaging.New(32, 32, color.NRGBA{R: uint8(80 * ii), G: 100, B: 200, A: 255})
		require.NoError(t, imaging.Save(img, filepath.Join(inputDir, fmt.Sprintf("%d.png", ii))))
	}
	cfg := config.Default()
	cfg.InitImg = inputDir
	cfg.OutDir = t.TempDir()
	cfg.InputSize = 32
	cfg.SkipGrid = true
	sampler, decoder := must.M2(sampling.New("interpolation", sampling.Options{}))
	runner := must.M1(superres.New(cfg, sampler, decoder, quality.LaplacianVariance{}))

	var buf bytes.Buffer
	AttachProgressBar(runner, &buf)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.NumImages)
	out := buf.String()
	assert.Contains(t, out, "2 of 2")
	assert.Contains(t, out, "3 of 3")
	assert.Contains(t, out, "Mean score")
	assert.Contains(t, out, "3 images done")
}
