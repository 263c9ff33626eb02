// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sampling

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/gomlx/superres/pkg/images"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InterpolationFactor is the up-scaling factor of the "interpolation" decoder, the same
// as the latent-diffusion super-resolution model.
const InterpolationFactor = 4

func init() {
	Register("interpolation", func(opts Options) (Sampler, Decoder, error) {
		if opts.Checkpoint != "" {
			klog.Warningf("sampler \"interpolation\" doesn't use a model, ignoring checkpoint %q", opts.Checkpoint)
		}
		return &Interpolation{}, &InterpolationDecoder{Factor: InterpolationFactor}, nil
	})
}

// Interpolation is a baseline Sampler that returns the initial images unchanged as
// latents, regardless of the number of encoding steps.
type Interpolation struct {
	numSteps int
}

var _ Sampler = (*Interpolation)(nil)

// MakeSchedule implements Sampler.
func (s *Interpolation) MakeSchedule(numSteps int, eta float64) error {
	if numSteps <= 0 {
		return errors.Errorf("numSteps must be > 0, got %d", numSteps)
	}
	s.numSteps = numSteps
	return nil
}

// Sample implements Sampler.
func (s *Interpolation) Sample(ctx context.Context, encodeSteps, batchSize int, shape [3]int,
	initImages *featuremaps.FeatureMap[float32], eta float64) (*featuremaps.FeatureMap[float32], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckSampleArgs(s.numSteps, encodeSteps, batchSize, shape, initImages); err != nil {
		return nil, err
	}
	return initImages.Clone(), nil
}

// InterpolationDecoder up-scales the latents (taken as images in [-1, 1]) by Factor,
// with Lanczos resampling.
type InterpolationDecoder struct {
	Factor int
}

var _ Decoder = (*InterpolationDecoder)(nil)

// Decode implements Decoder.
func (d *InterpolationDecoder) Decode(ctx context.Context, latents *featuremaps.FeatureMap[float32]) (*featuremaps.FeatureMap[float32], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Factor <= 0 {
		return nil, errors.Errorf("invalid interpolation factor %d", d.Factor)
	}
	width, height := latents.Width()*d.Factor, latents.Height()*d.Factor
	lowRes := images.ToImage().Range(-1, 1).Batch(latents)
	highRes := make([]image.Image, len(lowRes))
	for ii, img := range lowRes {
		highRes[ii] = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return images.ToFeatureMap().Range(-1, 1).Batch(highRes)
}
