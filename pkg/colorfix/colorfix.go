// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package colorfix restores the color statistics of a model output to match a reference
// image, using adaptive instance normalization (AdaIN).
//
// Diffusion sampling can drift the global color and illumination away from the input;
// AdaIN rescales each (image, channel) plane of the output to have the mean and
// standard deviation of the corresponding plane of the input, leaving the spatial
// detail of the output untouched.
package colorfix

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"golang.org/x/exp/constraints"
)

// DefaultEpsilon is added to the variance before taking the square root, to avoid
// division by zero on constant planes.
const DefaultEpsilon = 1e-5

// CalcMeanStd returns the per-(batch, channel) mean and standard deviation of f.
//
// The variance is the unbiased one (divided by height*width-1), and epsilon is added to
// it before the square root. Both statistics are shaped (batch, channel, 1, 1).
// Notice that for planes with a single value (height*width == 1) the unbiased variance
// is undefined, and the standard deviation is NaN.
//
// It panics if f doesn't have rank 4.
func CalcMeanStd[T constraints.Float](f *featuremaps.FeatureMap[T], epsilon float64) (mean, std *featuremaps.ChannelStats[T]) {
	if f == nil {
		exceptions.Panicf("colorfix.CalcMeanStd: nil feature map")
	}
	if rank := f.Shape().Rank(); rank != featuremaps.Rank {
		exceptions.Panicf("colorfix.CalcMeanStd: the input feature should be a 4D tensor, got rank %d", rank)
	}
	batch, channels := f.Batch(), f.Channels()
	mean = featuremaps.MakeChannelStats[T](batch, channels)
	std = featuremaps.MakeChannelStats[T](batch, channels)
	for b := range batch {
		for c := range channels {
			m, v := planeMeanVariance(f.Plane(b, c))
			mean.Set(b, c, T(m))
			std.Set(b, c, T(math.Sqrt(v+epsilon)))
		}
	}
	return
}

// planeMeanVariance accumulates in float64 regardless of T.
func planeMeanVariance[T constraints.Float](plane []T) (mean, unbiasedVariance float64) {
	n := float64(len(plane))
	for _, v := range plane {
		mean += float64(v)
	}
	mean /= n
	var sumSq float64
	for _, v := range plane {
		d := float64(v) - mean
		sumSq += d * d
	}
	unbiasedVariance = sumSq / (n - 1)
	if n == 1 {
		unbiasedVariance = math.NaN()
	}
	return
}

// AdaptiveInstanceNormalization adjusts content to have the per-(batch, channel) color
// statistics of style:
//
//	output = ((content - mean(content)) / std(content)) * std(style) + mean(style)
//
// content is typically the reconstructed model output, and style the degraded input
// used as the color reference. They must share the batch and channel dimensions, but
// may have different spatial dimensions. Neither input is modified.
//
// It panics if the inputs have mismatched batch or channel dimensions.
func AdaptiveInstanceNormalization[T constraints.Float](content, style *featuremaps.FeatureMap[T]) *featuremaps.FeatureMap[T] {
	return AdaptiveInstanceNormalizationWithEpsilon(content, style, DefaultEpsilon)
}

// AdaptiveInstanceNormalizationWithEpsilon is like AdaptiveInstanceNormalization, but
// with an explicit epsilon for the statistics.
func AdaptiveInstanceNormalizationWithEpsilon[T constraints.Float](content, style *featuremaps.FeatureMap[T], epsilon float64) *featuremaps.FeatureMap[T] {
	if content == nil || style == nil {
		exceptions.Panicf("colorfix.AdaptiveInstanceNormalization: nil feature map")
	}
	if content.Batch() != style.Batch() || content.Channels() != style.Channels() {
		exceptions.Panicf("colorfix.AdaptiveInstanceNormalization: content shape %s and style shape %s must "+
			"have the same batch and channel dimensions", content.Shape(), style.Shape())
	}
	styleMean, styleStd := CalcMeanStd(style, epsilon)
	contentMean, contentStd := CalcMeanStd(content, epsilon)

	shape := content.Shape()
	contentMeanMap := contentMean.BroadcastTo(shape)
	contentStdMap := contentStd.BroadcastTo(shape)
	styleMeanMap := styleMean.BroadcastTo(shape)
	styleStdMap := styleStd.BroadcastTo(shape)

	output := featuremaps.Make[T](shape.Dimensions...)
	outFlat := output.Flat()
	contentFlat := content.Flat()
	cMean, cStd := contentMeanMap.Flat(), contentStdMap.Flat()
	sMean, sStd := styleMeanMap.Flat(), styleStdMap.Flat()
	for ii, v := range contentFlat {
		normalized := (v - cMean[ii]) / cStd[ii]
		outFlat[ii] = normalized*sStd[ii] + sMean[ii]
	}
	return output
}
