// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package featuremaps implements a batch of multi-channel images laid out as
// (batch, channel, height, width) -- the "NCHW" layout used by diffusion models.
//
// FeatureMap values are stored in one flat row-major slice. Operations that
// receive malformed inputs (wrong rank, mismatched shapes) panic with
// github.com/gomlx/exceptions, since those are programming errors upstream.
package featuremaps

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// FeatureMap holds a rank-4 array of floats, shaped (batch, channel, height, width).
type FeatureMap[T constraints.Float] struct {
	shape Shape
	flat  []T
}

// Make returns a zero-valued FeatureMap with the given dimensions.
//
// It panics if there are not exactly 4 dimensions.
func Make[T constraints.Float](dimensions ...int) *FeatureMap[T] {
	shape := MakeShape(dimensions...)
	return &FeatureMap[T]{shape: shape, flat: make([]T, shape.Size())}
}

// FromFlat wraps the flat slice (no copy) as a FeatureMap with the given dimensions.
//
// It panics if the size of flat doesn't match the dimensions.
func FromFlat[T constraints.Float](flat []T, dimensions ...int) *FeatureMap[T] {
	shape := MakeShape(dimensions...)
	if len(flat) != shape.Size() {
		exceptions.Panicf("featuremaps.FromFlat: %d values given for shape %s, which requires %d",
			len(flat), shape, shape.Size())
	}
	return &FeatureMap[T]{shape: shape, flat: flat}
}

// ZerosLike returns numImages zero-valued images shaped like one image of f.
func ZerosLike[T constraints.Float](f *FeatureMap[T], numImages int) *FeatureMap[T] {
	return Make[T](numImages, f.Channels(), f.Height(), f.Width())
}

// Shape of the feature map.
func (f *FeatureMap[T]) Shape() Shape { return f.shape }

// Flat returns the underlying storage. Changes to it are reflected in the feature map.
func (f *FeatureMap[T]) Flat() []T { return f.flat }

// Batch returns the number of images in the feature map.
func (f *FeatureMap[T]) Batch() int { return f.shape.Batch() }

// Channels returns the number of channels.
func (f *FeatureMap[T]) Channels() int { return f.shape.Channels() }

// Height of each image.
func (f *FeatureMap[T]) Height() int { return f.shape.Height() }

// Width of each image.
func (f *FeatureMap[T]) Width() int { return f.shape.Width() }

// String implements fmt.Stringer.
func (f *FeatureMap[T]) String() string {
	var zero T
	return fmt.Sprintf("FeatureMap[%T]%s", zero, f.shape)
}

func (f *FeatureMap[T]) offset(batch, channel, y, x int) int {
	return ((batch*f.shape.Dimensions[ChannelAxis]+channel)*f.shape.Dimensions[HeightAxis]+y)*f.shape.Dimensions[WidthAxis] + x
}

// At returns the value at the given position.
func (f *FeatureMap[T]) At(batch, channel, y, x int) T {
	return f.flat[f.offset(batch, channel, y, x)]
}

// Set the value at the given position.
func (f *FeatureMap[T]) Set(batch, channel, y, x int, value T) {
	f.flat[f.offset(batch, channel, y, x)] = value
}

// Plane returns the (height*width) values of one channel of one image, as a view
// into the feature map storage.
func (f *FeatureMap[T]) Plane(batch, channel int) []T {
	start := f.offset(batch, channel, 0, 0)
	return f.flat[start : start+f.shape.SpatialSize()]
}

// Image returns the channels*height*width values of one image, as a view into the
// feature map storage.
func (f *FeatureMap[T]) Image(batch int) []T {
	if batch < 0 || batch >= f.Batch() {
		exceptions.Panicf("FeatureMap.Image(%d) out-of-bounds for %s", batch, f)
	}
	imageSize := f.Channels() * f.shape.SpatialSize()
	return f.flat[batch*imageSize : (batch+1)*imageSize]
}

// Clone returns a deep copy.
func (f *FeatureMap[T]) Clone() *FeatureMap[T] {
	flat := make([]T, len(f.flat))
	copy(flat, f.flat)
	return &FeatureMap[T]{shape: MakeShape(f.shape.Dimensions...), flat: flat}
}

// Slice returns a copy of the images in [from, to) along the batch axis.
func (f *FeatureMap[T]) Slice(from, to int) *FeatureMap[T] {
	if from < 0 || to > f.Batch() || from >= to {
		exceptions.Panicf("FeatureMap.Slice(%d, %d) invalid for %s", from, to, f)
	}
	imageSize := f.Channels() * f.shape.SpatialSize()
	flat := make([]T, (to-from)*imageSize)
	copy(flat, f.flat[from*imageSize:to*imageSize])
	return &FeatureMap[T]{shape: f.shape.WithBatch(to - from), flat: flat}
}

// Map returns a new feature map with fn applied to every value.
func (f *FeatureMap[T]) Map(fn func(v T) T) *FeatureMap[T] {
	flat := make([]T, len(f.flat))
	for ii, v := range f.flat {
		flat[ii] = fn(v)
	}
	return &FeatureMap[T]{shape: MakeShape(f.shape.Dimensions...), flat: flat}
}

// Clamp returns a new feature map with values limited to [lower, upper].
func (f *FeatureMap[T]) Clamp(lower, upper T) *FeatureMap[T] {
	return f.Map(func(v T) T {
		return min(max(v, lower), upper)
	})
}

// Concatenate feature maps along the batch axis. All of them must have the same
// channels, height and width.
func Concatenate[T constraints.Float](maps ...*FeatureMap[T]) *FeatureMap[T] {
	if len(maps) == 0 {
		exceptions.Panicf("featuremaps.Concatenate requires at least one feature map")
	}
	first := maps[0]
	total := 0
	for ii, m := range maps {
		if m.Channels() != first.Channels() || m.Height() != first.Height() || m.Width() != first.Width() {
			exceptions.Panicf("featuremaps.Concatenate: maps[%d] has shape %s, incompatible with maps[0] shape %s",
				ii, m.shape, first.shape)
		}
		total += m.Batch()
	}
	flat := make([]T, 0, total*first.Channels()*first.shape.SpatialSize())
	for _, m := range maps {
		flat = append(flat, m.flat...)
	}
	return FromFlat(flat, total, first.Channels(), first.Height(), first.Width())
}
