// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package featuremaps

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// Rank of every feature map: (batch, channel, height, width).
const Rank = 4

// Axes of a feature map.
const (
	BatchAxis = iota
	ChannelAxis
	HeightAxis
	WidthAxis
)

// Shape of a feature map. It always holds exactly Rank dimensions, all of them > 0.
type Shape struct {
	Dimensions []int
}

// MakeShape returns a Shape with the given dimensions.
//
// It panics if the number of dimensions is not Rank, or if any dimension is <= 0.
func MakeShape(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	if len(dimensions) != Rank {
		exceptions.Panicf("featuremaps.MakeShape(%v): feature maps must have rank %d, got rank %d",
			dimensions, Rank, len(dimensions))
	}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("featuremaps.MakeShape(%v): cannot create a shape with an axis with dimension <= 0", dimensions)
		}
	}
	return s
}

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Batch returns the batch dimension.
func (s Shape) Batch() int { return s.Dim(BatchAxis) }

// Channels returns the channel dimension.
func (s Shape) Channels() int { return s.Dim(ChannelAxis) }

// Height returns the height dimension.
func (s Shape) Height() int { return s.Dim(HeightAxis) }

// Width returns the width dimension.
func (s Shape) Width() int { return s.Dim(WidthAxis) }

// SpatialSize is height*width, the number of values in one channel plane.
func (s Shape) SpatialSize() int { return s.Height() * s.Width() }

// Size returns the number of elements for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	return fmt.Sprintf("%v", s.Dimensions)
}

// Equal compares two shapes for equality.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// WithBatch returns a copy of the shape with the batch dimension replaced.
func (s Shape) WithBatch(batch int) Shape {
	dims := slices.Clone(s.Dimensions)
	dims[BatchAxis] = batch
	return MakeShape(dims...)
}
