// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package superres

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/config"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/gomlx/superres/pkg/grid"
	"github.com/gomlx/superres/pkg/quality"
	"github.com/gomlx/superres/pkg/sampling"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createInputs writes numImages 64x64 PNG images to a new directory, named "img_<i>.png".
func createInputs(t *testing.T, numImages int) string {
	dir := t.TempDir()
	for ii := range numImages {
		img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
		for y := range 64 {
			for x := range 64 {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(4 * x), G: uint8(4 * y), B: uint8(50 * ii), A: 255})
			}
		}
		require.NoError(t, imaging.Save(img, filepath.Join(dir, "img_"+string(rune('a'+ii))+".png")))
	}
	// Files that are not images are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))
	return dir
}

func testConfig(t *testing.T, inputDir string) *config.Config {
	cfg := config.Default()
	cfg.InitImg = inputDir
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	cfg.InputSize = 64
	cfg.Strength = 0.5
	cfg.DDIMSteps = 10
	return cfg
}

// constantMetric scores every image with its fixed value.
type constantMetric float64

func (m constantMetric) Name() string { return "constant" }

func (m constantMetric) Score(img *quality.HWC, convertTo quality.ColorSpace) (float64, error) {
	return float64(m), nil
}

func newInterpolationRunner(t *testing.T, cfg *config.Config, metric quality.Metric) *Runner {
	sampler, decoder := must.M2(sampling.New("interpolation", sampling.Options{Seed: cfg.Seed}))
	return must.M1(New(cfg, sampler, decoder, metric))
}

func TestRunAndResume(t *testing.T) {
	inputDir := createInputs(t, 3)
	cfg := testConfig(t, inputDir)
	cfg.SaveInput = true
	cfg.ScoreHistogram = true
	runner := newInterpolationRunner(t, cfg, quality.LaplacianVariance{})
	assert.Equal(t, 5, runner.EncodeSteps())
	assert.Equal(t, [][]string{{"img_a.png", "img_b.png"}, {"img_c.png"}}, runner.Plan().Batches())

	var started, batches, ended int
	runner.OnStart(func(*Runner) { started++ })
	runner.OnBatch(func(_ *Runner, info BatchInfo) {
		assert.Equal(t, batches, info.Index)
		assert.Len(t, info.Scores, len(info.Names))
		batches++
	})
	runner.OnEnd(func(*Runner, *Result) { ended++ })

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, batches)
	assert.Equal(t, 1, ended)
	assert.Equal(t, 3, result.NumImages)
	assert.Equal(t, 2, result.NumBatches)
	require.Len(t, result.Scores, 3)
	assert.Equal(t, "laplacian_variance", result.MetricName)
	assert.Equal(t, []string{"img_a.png", "img_b.png", "img_c.png"},
		[]string{result.Scores[0].ID, result.Scores[1].ID, result.Scores[2].ID})

	// Samples are 4x the input short side (64/4=16).
	for _, name := range []string{"img_a.png", "img_b.png", "img_c.png"} {
		sample, err := imaging.Open(filepath.Join(cfg.SamplesDir(), name))
		require.NoError(t, err)
		assert.Equal(t, image.Pt(64, 64), sample.Bounds().Size())
		input, err := imaging.Open(filepath.Join(cfg.InputsDir(), name))
		require.NoError(t, err)
		assert.Equal(t, image.Pt(16, 16), input.Bounds().Size())
	}

	// Grid: 2 batches of 2 (last one padded), 2 columns, 2 pixels padding.
	assert.Equal(t, filepath.Join(cfg.OutDir, "grid-0000.png"), result.GridPath)
	gridImage, err := imaging.Open(result.GridPath)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2*66+2, 2*66+2), gridImage.Bounds().Size())

	for _, name := range []string{config.ScoresFileName, config.HistogramFileName} {
		_, err := os.Stat(filepath.Join(cfg.OutDir, name))
		require.NoErrorf(t, err, "missing %s", name)
	}

	// Resuming: nothing left to do.
	runner = newInterpolationRunner(t, cfg, quality.LaplacianVariance{})
	assert.Equal(t, 0, runner.Plan().NumPending())
	result, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.NumImages)
	assert.Empty(t, result.GridPath)
	assert.Empty(t, result.Scores)

	// A new input is picked up, and the grid counter continues.
	require.NoError(t, imaging.Save(imaging.New(64, 64, color.White), filepath.Join(inputDir, "img_z.png")))
	runner = newInterpolationRunner(t, cfg, constantMetric(7))
	result, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.NumImages)
	assert.Equal(t, 7.0, result.MeanScore)
	assert.Equal(t, filepath.Join(cfg.OutDir, "grid-0001.png"), result.GridPath)
}

func TestRunSkipSaveAndGrid(t *testing.T) {
	cfg := testConfig(t, createInputs(t, 2))
	cfg.SkipSave = true
	cfg.SkipGrid = true
	result, err := newInterpolationRunner(t, cfg, constantMetric(3)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.MeanScore)
	assert.Empty(t, result.GridPath)
	entries, err := os.ReadDir(cfg.SamplesDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunMixedSizes(t *testing.T) {
	inputDir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(64, 64, color.White), filepath.Join(inputDir, "a.png")))
	require.NoError(t, imaging.Save(imaging.New(96, 64, color.Black), filepath.Join(inputDir, "b.png")))
	cfg := testConfig(t, inputDir)
	cfg.NSamples = 1
	runner := newInterpolationRunner(t, cfg, constantMetric(2))

	var result *Result
	require.NotPanics(t, func() {
		var err error
		result, err = runner.Run(context.Background())
		require.NoError(t, err)
	})
	assert.Equal(t, 2, result.NumImages)
	assert.Empty(t, result.GridPath)
	assert.Equal(t, 2.0, result.MeanScore)
	require.Len(t, result.Scores, 2)

	sample, err := imaging.Open(filepath.Join(cfg.SamplesDir(), "b.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(96, 64), sample.Bounds().Size())
	_, err = os.Stat(filepath.Join(cfg.OutDir, config.ScoresFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.OutDir, grid.FileName(0)))
	assert.True(t, os.IsNotExist(err))
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig(t, createInputs(t, 1))
	cfg.Strength = 1.1
	sampler, decoder := must.M2(sampling.New("interpolation", sampling.Options{}))
	_, err := New(cfg, sampler, decoder, nil)
	require.Error(t, err)
	_, err = os.Stat(cfg.OutDir)
	assert.True(t, os.IsNotExist(err), "no work should be done with an invalid configuration")

	cfg = testConfig(t, filepath.Join(t.TempDir(), "missing"))
	_, err = New(cfg, sampler, decoder, nil)
	require.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t, createInputs(t, 2))
	runner := newInterpolationRunner(t, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// shiftedDecoder adds a constant color shift to the decoded images, simulating drift.
type shiftedDecoder struct {
	sampling.InterpolationDecoder
	shift    float32
	dropLast bool
}

func (d *shiftedDecoder) Decode(ctx context.Context, latents *featuremaps.FeatureMap[float32]) (*featuremaps.FeatureMap[float32], error) {
	decoded, err := d.InterpolationDecoder.Decode(ctx, latents)
	if err != nil {
		return nil, err
	}
	if d.dropLast && decoded.Batch() > 1 {
		decoded = decoded.Slice(0, decoded.Batch()-1)
	}
	return decoded.Map(func(v float32) float32 { return v + d.shift }), nil
}

func TestColorFix(t *testing.T) {
	meanOfSample := func(cfg *config.Config) float64 {
		sample, err := imaging.Open(filepath.Join(cfg.SamplesDir(), "img_a.png"))
		require.NoError(t, err)
		nrgba := imaging.Clone(sample)
		var sum float64
		for ii := 0; ii < len(nrgba.Pix); ii += 4 {
			sum += float64(nrgba.Pix[ii+1])
		}
		return sum / float64(len(nrgba.Pix)/4)
	}
	inputDir := createInputs(t, 1)

	run := func(colorFix bool) float64 {
		cfg := testConfig(t, inputDir)
		cfg.ColorFix = colorFix
		cfg.Precision = config.PrecisionFull
		decoder := &shiftedDecoder{InterpolationDecoder: sampling.InterpolationDecoder{Factor: 4}, shift: -0.3}
		runner := must.M1(New(cfg, &sampling.Interpolation{}, decoder, nil))
		_, err := runner.Run(context.Background())
		require.NoError(t, err)
		return meanOfSample(cfg)
	}
	drifted := run(false)
	fixed := run(true)
	// Green channel goes from 4*0 to 4*63: mean ~126.
	assert.Less(t, drifted, 126.0-25.0)
	assert.InDelta(t, 126.0, fixed, 4.0)
}

func TestDecoderMismatch(t *testing.T) {
	cfg := testConfig(t, createInputs(t, 2))
	decoder := &shiftedDecoder{InterpolationDecoder: sampling.InterpolationDecoder{Factor: 4}, dropLast: true}
	runner := must.M1(New(cfg, &sampling.Interpolation{}, decoder, nil))
	_, err := runner.Run(context.Background())
	require.Error(t, err)
}
