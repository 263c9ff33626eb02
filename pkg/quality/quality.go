// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quality scores output images with a no-reference quality metric, and
// aggregates the scores of a run.
//
// The metric itself is pluggable (see Metric). An Aggregator collects one score per
// processed image and reports their mean, failing loudly if any image was skipped or
// counted twice.
package quality

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/superres/pkg/core/featuremaps"
)

// ColorSpace selects the conversion applied to the pixels before scoring.
type ColorSpace int

const (
	// ColorSpaceRGB scores the RGB channels as given.
	ColorSpaceRGB ColorSpace = iota

	// ColorSpaceY scores only the luma (Y) channel of the ITU-R BT.601 YCbCr conversion.
	ColorSpaceY
)

// String implements fmt.Stringer.
func (cs ColorSpace) String() string {
	switch cs {
	case ColorSpaceRGB:
		return "rgb"
	case ColorSpaceY:
		return "y"
	default:
		return "unknown"
	}
}

// HWC holds the pixels of one image in height-width-channel order, with values in [0, 255].
type HWC struct {
	Height, Width, Channels int
	Pix                     []float64
}

// At returns the value at the given position.
func (img *HWC) At(y, x, c int) float64 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// FromFeatureMap converts image index of f, with values in [0, 1], to HWC in [0, 255].
func FromFeatureMap(f *featuremaps.FeatureMap[float32], index int) *HWC {
	img := &HWC{Height: f.Height(), Width: f.Width(), Channels: f.Channels()}
	img.Pix = make([]float64, img.Height*img.Width*img.Channels)
	for c := range img.Channels {
		plane := f.Plane(index, c)
		for ii, v := range plane {
			img.Pix[ii*img.Channels+c] = 255 * float64(v)
		}
	}
	return img
}

// Luma returns the Y channel of img (RGB in [0, 255]) as a 1-channel HWC, using the
// ITU-R BT.601 conversion for studio swing: Y in [16, 235].
func Luma(img *HWC) *HWC {
	if img.Channels != 3 {
		exceptions.Panicf("quality.Luma: image must have 3 channels, got %d", img.Channels)
	}
	y := &HWC{Height: img.Height, Width: img.Width, Channels: 1, Pix: make([]float64, img.Height*img.Width)}
	for ii := range y.Pix {
		r, g, b := img.Pix[3*ii]/255, img.Pix[3*ii+1]/255, img.Pix[3*ii+2]/255
		y.Pix[ii] = 65.481*r + 128.553*g + 24.966*b + 16
	}
	return y
}

// Metric is a no-reference image quality metric: it scores one image at a time.
type Metric interface {
	// Name of the metric, used in reports.
	Name() string

	// Score the image, after converting it to the given color space.
	Score(img *HWC, convertTo ColorSpace) (float64, error)
}
