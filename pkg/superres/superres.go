// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package superres runs the super-resolution of a directory of images, batch by batch:
//
//  1. The pending images (inputs not yet in the samples directory) are planned in batches
//     once, at creation (see package batchplan).
//  2. Each batch is loaded, downsampled and fed to the sampler, which runs a partial
//     trajectory of Config.Strength * Config.DDIMSteps encoding steps.
//  3. The latents are decoded, optionally color-fixed with AdaIN against the input, and
//     saved and scored.
//  4. At the end, all samples are tiled into a grid image, and the mean score reported.
//
// Batches are processed strictly sequentially. An interrupted run is resumed by running
// it again with the same directories: completed images are skipped.
package superres

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gomlx/superres/pkg/batchplan"
	"github.com/gomlx/superres/pkg/colorfix"
	"github.com/gomlx/superres/pkg/config"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/gomlx/superres/pkg/grid"
	"github.com/gomlx/superres/pkg/images"
	"github.com/gomlx/superres/pkg/quality"
	"github.com/gomlx/superres/pkg/sampling"
	"github.com/gomlx/superres/pkg/schedule"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Runner executes a super-resolution run. Create it with New, and execute it with Run.
type Runner struct {
	cfg         *config.Config
	sampler     sampling.Sampler
	decoder     sampling.Decoder
	metric      quality.Metric
	plan        *batchplan.Plan
	encodeSteps int
	runID       string

	onStart []func(r *Runner)
	onBatch []func(r *Runner, batch BatchInfo)
	onEnd   []func(r *Runner, result *Result)
}

// BatchInfo is passed to the OnBatch hooks after each batch is completed.
type BatchInfo struct {
	Index    int
	Names    []string
	Elapsed  time.Duration
	Scores   []float64
	Complete int // Number of images completed so far.
}

// Result of a run.
type Result struct {
	RunID       string
	NumBatches  int
	NumImages   int
	EncodeSteps int

	// MetricName and Scores are empty if no metric was given.
	MetricName string
	Scores     []quality.Entry
	MeanScore  float64

	// GridPath is empty if no grid was saved: with -skip_grid, when nothing was processed,
	// or when the samples have different sizes.
	GridPath string
	Elapsed  time.Duration
}

// New validates the configuration, takes the snapshot of the pending images and
// configures the sampler schedule. No image is processed until Run is called.
//
// metric can be nil, in which case no scores are collected.
func New(cfg *config.Config, sampler sampling.Sampler, decoder sampling.Decoder, metric quality.Metric) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid configuration")
	}
	if sampler == nil || decoder == nil {
		return nil, errors.New("superres.New() requires a sampler and a decoder")
	}
	encodeSteps, err := schedule.EncodingSteps(cfg.DDIMSteps, cfg.Strength)
	if err != nil {
		return nil, err
	}
	initDir, err := fsutil.ReplaceTildeInDir(cfg.InitImg)
	if err != nil {
		return nil, err
	}
	outDir, err := fsutil.ReplaceTildeInDir(cfg.OutDir)
	if err != nil {
		return nil, err
	}
	cfg.InitImg, cfg.OutDir = initDir, outDir
	for _, dir := range []string{cfg.OutDir, cfg.SamplesDir(), cfg.InputsDir()} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	plan, err := batchplan.FromDirs(cfg.InitImg, cfg.SamplesDir(), cfg.NSamples, images.IsImageFile)
	if err != nil {
		return nil, err
	}
	if err := sampler.MakeSchedule(cfg.DDIMSteps, cfg.DDIMEta); err != nil {
		return nil, errors.WithMessagef(err, "failed to configure sampler schedule with %d steps", cfg.DDIMSteps)
	}
	r := &Runner{
		cfg:         cfg,
		sampler:     sampler,
		decoder:     decoder,
		metric:      metric,
		plan:        plan,
		encodeSteps: encodeSteps,
		runID:       uuid.NewString(),
	}
	klog.Infof("run %s: target t_enc is %d steps (strength=%g, ddim_steps=%d)",
		r.runID, encodeSteps, cfg.Strength, cfg.DDIMSteps)
	return r, nil
}

// Config used by the runner.
func (r *Runner) Config() *config.Config { return r.cfg }

// Plan returns the batches to be processed.
func (r *Runner) Plan() *batchplan.Plan { return r.plan }

// EncodeSteps is the number of noising steps applied to the inputs.
func (r *Runner) EncodeSteps() int { return r.encodeSteps }

// RunID is a unique identifier of this run, used in logs and reports.
func (r *Runner) RunID() string { return r.runID }

// OnStart registers a hook called at the start of Run.
func (r *Runner) OnStart(fn func(r *Runner)) { r.onStart = append(r.onStart, fn) }

// OnBatch registers a hook called after each batch is completed.
func (r *Runner) OnBatch(fn func(r *Runner, batch BatchInfo)) { r.onBatch = append(r.onBatch, fn) }

// OnEnd registers a hook called when Run finishes successfully.
func (r *Runner) OnEnd(fn func(r *Runner, result *Result)) { r.onEnd = append(r.onEnd, fn) }

// Run processes all the planned batches, in order, then saves the grid and the scores.
//
// The context is checked between batches: if it is cancelled, Run returns its error and
// the images completed so far are kept on disk, to be skipped by the next run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:       r.runID,
		NumBatches:  r.plan.NumBatches(),
		NumImages:   r.plan.NumPending(),
		EncodeSteps: r.encodeSteps,
	}
	for _, fn := range r.onStart {
		fn(r)
	}
	if r.plan.NumPending() == 0 {
		klog.Infof("run %s: no pending images in %q, nothing to do", r.runID, r.cfg.InitImg)
	}

	var aggregator *quality.Aggregator
	if r.metric != nil {
		aggregator = quality.NewAggregator(r.plan.NumPending())
		result.MetricName = r.metric.Name()
	}
	var allSamples []*featuremaps.FeatureMap[float32]
	complete := 0
	for batchIdx := range r.plan.NumBatches() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "run %s interrupted after %d of %d batches", r.runID, batchIdx, r.plan.NumBatches())
		}
		batchStart := time.Now()
		names := r.plan.Batch(batchIdx)
		samples, err := r.processBatch(ctx, names)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to process batch #%d %q", batchIdx, names)
		}
		var scores []float64
		if aggregator != nil {
			scores, err = r.score(samples, names, aggregator)
			if err != nil {
				return nil, err
			}
		}
		if !r.cfg.SkipGrid {
			allSamples = append(allSamples, samples)
		}
		complete += len(names)
		info := BatchInfo{Index: batchIdx, Names: names, Elapsed: time.Since(batchStart), Scores: scores, Complete: complete}
		klog.V(1).Infof("run %s: batch %d/%d (%d images) done in %s", r.runID, batchIdx+1, r.plan.NumBatches(), len(names), info.Elapsed)
		for _, fn := range r.onBatch {
			fn(r, info)
		}
	}

	if len(allSamples) > 0 {
		if err := grid.CheckCompatible(allSamples); err != nil {
			klog.Warningf("run %s: skipping the grid, samples of different sizes can't be tiled: %v", r.runID, err)
		} else {
			gridPath, err := r.saveGrid(allSamples)
			if err != nil {
				return nil, err
			}
			result.GridPath = gridPath
		}
	}

	if aggregator != nil && r.plan.NumPending() > 0 {
		mean, err := aggregator.Mean()
		if err != nil {
			return nil, errors.WithMessagef(err, "run %s: inconsistent quality scores", r.runID)
		}
		result.MeanScore = mean
		result.Scores = aggregator.Entries()
		if err := r.saveScores(result); err != nil {
			return nil, err
		}
		klog.Infof("run %s: average %s score: %.3f", r.runID, result.MetricName, mean)
	}

	result.Elapsed = time.Since(start)
	for _, fn := range r.onEnd {
		fn(r, result)
	}
	return result, nil
}

// processBatch returns the samples of the batch, with values in [0, 1].
func (r *Runner) processBatch(ctx context.Context, names []string) (*featuremaps.FeatureMap[float32], error) {
	initImages, err := images.LoadBatch(r.cfg.InitImg, names, r.cfg.ShortSide())
	if err != nil {
		return nil, err
	}
	initImages = r.cfg.Precision.Apply(initImages)
	shape := [3]int{initImages.Channels(), initImages.Height(), initImages.Width()}
	latents, err := r.sampler.Sample(ctx, r.encodeSteps, len(names), shape, initImages, r.cfg.DDIMEta)
	if err != nil {
		return nil, errors.WithMessage(err, "sampling failed")
	}
	decoded, err := r.decoder.Decode(ctx, latents)
	if err != nil {
		return nil, errors.WithMessage(err, "decoding failed")
	}
	if decoded.Batch() != len(names) {
		return nil, errors.Errorf("decoder returned %d images for a batch of %d", decoded.Batch(), len(names))
	}
	decoded = r.cfg.Precision.Apply(decoded)
	if r.cfg.ColorFix {
		decoded = colorfix.AdaptiveInstanceNormalization(decoded, initImages)
	}
	samples := toUnitRange(decoded)

	if !r.cfg.SkipSave {
		if err := images.SaveBatch(samples, r.cfg.SamplesDir(), names); err != nil {
			return nil, err
		}
		if r.cfg.SaveInput {
			if err := images.SaveBatch(toUnitRange(initImages), r.cfg.InputsDir(), names); err != nil {
				return nil, err
			}
		}
	}
	return samples, nil
}

// toUnitRange maps values from [-1, 1] to [0, 1], clamping values out of range.
func toUnitRange(f *featuremaps.FeatureMap[float32]) *featuremaps.FeatureMap[float32] {
	return f.Map(func(v float32) float32 {
		return min(max((v+1)/2, 0), 1)
	})
}

func (r *Runner) score(samples *featuremaps.FeatureMap[float32], names []string, aggregator *quality.Aggregator) ([]float64, error) {
	scores := make([]float64, len(names))
	for ii, name := range names {
		score, err := r.metric.Score(quality.FromFeatureMap(samples, ii), quality.ColorSpaceY)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to score %q with %s", name, r.metric.Name())
		}
		aggregator.Add(name, score)
		scores[ii] = score
	}
	return scores, nil
}

func (r *Runner) saveGrid(allSamples []*featuremaps.FeatureMap[float32]) (string, error) {
	gridImage := grid.Assemble(allSamples, r.plan.BatchSize(), r.cfg.GridColumns(), r.cfg.GridPadding)
	index, err := grid.NextIndex(r.cfg.OutDir)
	if err != nil {
		return "", err
	}
	gridPath := filepath.Join(r.cfg.OutDir, grid.FileName(index))
	if err := images.Save(images.ToImage().Truncate().Single(gridImage, 0), gridPath); err != nil {
		return "", err
	}
	klog.V(1).Infof("run %s: grid of %d batches saved to %q", r.runID, len(allSamples), gridPath)
	return gridPath, nil
}

func (r *Runner) saveScores(result *Result) error {
	if err := quality.SaveCSV(filepath.Join(r.cfg.OutDir, config.ScoresFileName), result.Scores, result.MetricName); err != nil {
		return err
	}
	if r.cfg.ScoreHistogram {
		return quality.SaveHistogram(filepath.Join(r.cfg.OutDir, config.HistogramFileName), result.Scores, result.MetricName)
	}
	return nil
}
