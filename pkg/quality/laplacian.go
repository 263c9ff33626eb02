// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quality

import (
	"github.com/pkg/errors"
)

// LaplacianVariance is a simple sharpness metric: the variance of the response of a
// 3x3 Laplacian filter over the (valid) interior of each channel, averaged over the
// channels. Blurry images score low, sharp (or noisy) images score high.
type LaplacianVariance struct{}

var _ Metric = LaplacianVariance{}

// Name implements Metric.
func (LaplacianVariance) Name() string { return "laplacian_variance" }

// Score implements Metric.
func (LaplacianVariance) Score(img *HWC, convertTo ColorSpace) (float64, error) {
	if img.Height < 3 || img.Width < 3 {
		return 0, errors.Errorf("laplacian_variance requires images of at least 3x3, got %dx%d", img.Height, img.Width)
	}
	switch convertTo {
	case ColorSpaceRGB:
	case ColorSpaceY:
		if img.Channels != 3 {
			return 0, errors.Errorf("conversion to %s requires 3 channels, got %d", convertTo, img.Channels)
		}
		img = Luma(img)
	default:
		return 0, errors.Errorf("unknown color space %d", convertTo)
	}

	var total float64
	n := float64((img.Height - 2) * (img.Width - 2))
	for c := range img.Channels {
		var sum, sumSq float64
		for y := 1; y < img.Height-1; y++ {
			for x := 1; x < img.Width-1; x++ {
				response := img.At(y-1, x, c) + img.At(y+1, x, c) + img.At(y, x-1, c) + img.At(y, x+1, c) - 4*img.At(y, x, c)
				sum += response
				sumSq += response * response
			}
		}
		mean := sum / n
		total += sumSq/n - mean*mean
	}
	return total / float64(img.Channels), nil
}
