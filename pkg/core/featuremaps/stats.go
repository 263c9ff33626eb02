// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package featuremaps

import (
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// ChannelStats holds one scalar per (batch, channel) pair, e.g. the mean or
// the standard deviation of each channel plane of a FeatureMap.
//
// Its logical shape is (batch, channel, 1, 1). Use BroadcastTo to expand it to
// the full spatial shape of a feature map.
type ChannelStats[T constraints.Float] struct {
	batch, channels int
	values          []T
}

// MakeChannelStats returns zero-valued statistics for batch x channels planes.
func MakeChannelStats[T constraints.Float](batch, channels int) *ChannelStats[T] {
	if batch <= 0 || channels <= 0 {
		exceptions.Panicf("featuremaps.MakeChannelStats(%d, %d): dimensions must be > 0", batch, channels)
	}
	return &ChannelStats[T]{batch: batch, channels: channels, values: make([]T, batch*channels)}
}

// Shape returns the (batch, channel, 1, 1) shape of the statistics.
func (s *ChannelStats[T]) Shape() Shape {
	return MakeShape(s.batch, s.channels, 1, 1)
}

// At returns the statistic for the given image and channel.
func (s *ChannelStats[T]) At(batch, channel int) T {
	return s.values[batch*s.channels+channel]
}

// Set the statistic for the given image and channel.
func (s *ChannelStats[T]) Set(batch, channel int, value T) {
	s.values[batch*s.channels+channel] = value
}

// Values returns the flat (batch*channels) values, as a view.
func (s *ChannelStats[T]) Values() []T { return s.values }

// BroadcastTo expands the statistics to a full feature map of the given shape,
// repeating each (batch, channel) value over the spatial axes.
//
// It panics if the batch or channel dimensions don't match.
func (s *ChannelStats[T]) BroadcastTo(shape Shape) *FeatureMap[T] {
	if shape.Batch() != s.batch || shape.Channels() != s.channels {
		exceptions.Panicf("ChannelStats.BroadcastTo(%s): statistics shaped %s can only be broadcast per batch and channel",
			shape, s.Shape())
	}
	f := Make[T](shape.Dimensions...)
	for b := range s.batch {
		for c := range s.channels {
			plane := f.Plane(b, c)
			v := s.At(b, c)
			for ii := range plane {
				plane[ii] = v
			}
		}
	}
	return f
}
