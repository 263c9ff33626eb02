// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package images converts images back and forth from feature maps, and loads and saves
// them from disk.
//
// Feature maps are channels-first (batch, channel, height, width), with 3 RGB channels.
// The alpha channel is dropped.
package images

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/pkg/errors"
)

// NumChannels of the feature maps converted from images: RGB.
const NumChannels = 3

// ToFeatureMapConfig holds the configuration returned by the ToFeatureMap function. Once
// configured, use Single or Batch to actually convert.
type ToFeatureMapConfig struct {
	minValue, maxValue float32
}

// ToFeatureMap converts an image (or batch) to a FeatureMap[float32].
//
// It returns a configuration object that can be further configured. Once set, use Single or Batch
// methods to convert an image or a batch of images.
//
// By default, pixel values are mapped to [0, 1].
func ToFeatureMap() *ToFeatureMapConfig {
	return &ToFeatureMapConfig{minValue: 0, maxValue: 1}
}

// Range sets the values that the darkest (0) and the brightest (255) pixel values are mapped to.
// E.g.: diffusion models usually take images in the [-1, 1] range.
//
// It returns the ToFeatureMapConfig object, so configuration calls can be cascaded.
func (tf *ToFeatureMapConfig) Range(minValue, maxValue float32) *ToFeatureMapConfig {
	tf.minValue, tf.maxValue = minValue, maxValue
	return tf
}

// Single converts the given img to a feature map shaped `[1, 3, height, width]`.
func (tf *ToFeatureMapConfig) Single(img image.Image) *featuremaps.FeatureMap[float32] {
	f, err := tf.Batch([]image.Image{img})
	if err != nil {
		// Unreachable: a single image can't have mismatched sizes.
		panic(err)
	}
	return f
}

// Batch converts the given images to a feature map shaped `[batch_size, 3, height, width]`.
//
// All images must have the same size.
func (tf *ToFeatureMapConfig) Batch(images []image.Image) (*featuremaps.FeatureMap[float32], error) {
	if len(images) == 0 {
		return nil, errors.New("images.ToFeatureMap().Batch() requires at least one image")
	}
	imgSize := images[0].Bounds().Size()
	if imgSize.X <= 0 || imgSize.Y <= 0 {
		return nil, errors.Errorf("images.ToFeatureMap(): image[0] has invalid size %s", imgSize)
	}
	f := featuremaps.Make[float32](len(images), NumChannels, imgSize.Y, imgSize.X)
	scale := (tf.maxValue - tf.minValue) / 255
	for imgIdx, img := range images {
		if !img.Bounds().Size().Eq(imgSize) {
			return nil, errors.Errorf(
				"image[%d] has size %s, but image[0] has size %s -- they must all be the same",
				imgIdx, img.Bounds().Size(), imgSize)
		}
		nrgba := imaging.Clone(img)
		for c := range NumChannels {
			plane := f.Plane(imgIdx, c)
			for y := range imgSize.Y {
				row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*imgSize.X]
				for x := range imgSize.X {
					plane[y*imgSize.X+x] = tf.minValue + float32(row[4*x+c])*scale
				}
			}
		}
	}
	return f, nil
}

// ToImageConfig holds the configuration returned by the ToImage function. Once
// configured, use Single or Batch to convert a feature map to image(s).
type ToImageConfig struct {
	minValue, maxValue float32
	truncate           bool
}

// ToImage returns a configuration that can be used to convert feature maps to images.
// Use Single or Batch to convert single images or batch of images at once.
//
// By default, values are expected in [0, 1]. Values out of range are clipped.
// Feature maps with 1 channel are converted to gray images, with 3 channels to RGB.
func ToImage() *ToImageConfig {
	return &ToImageConfig{minValue: 0, maxValue: 1}
}

// Range sets the values that are mapped to the darkest (0) and the brightest (255) pixel values.
//
// It returns the ToImageConfig object, so configuration calls can be cascaded.
func (ti *ToImageConfig) Range(minValue, maxValue float32) *ToImageConfig {
	ti.minValue, ti.maxValue = minValue, maxValue
	return ti
}

// Truncate makes the conversion drop the fractional part of the pixel values, as a plain
// integer cast does, instead of rounding them to the nearest level. Saved outputs use it.
//
// It returns the ToImageConfig object, so configuration calls can be cascaded.
func (ti *ToImageConfig) Truncate() *ToImageConfig {
	ti.truncate = true
	return ti
}

// Single converts image index from f.
func (ti *ToImageConfig) Single(f *featuremaps.FeatureMap[float32], index int) *image.NRGBA {
	channels := f.Channels()
	if channels != 1 && channels != NumChannels {
		exceptions.Panicf("images.ToImage(): feature map %s must have 1 or %d channels", f.Shape(), NumChannels)
	}
	width, height := f.Width(), f.Height()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	scale := 255 / float64(ti.maxValue-ti.minValue)
	for c := range NumChannels {
		plane := f.Plane(index, min(c, channels-1))
		for y := range height {
			for x := range width {
				v := float64(plane[y*width+x]-ti.minValue) * scale
				if ti.truncate {
					v = math.Trunc(v)
				} else {
					v = math.Round(v)
				}
				img.Pix[y*img.Stride+4*x+c] = uint8(min(max(v, 0), 255))
			}
		}
	}
	for y := range height {
		for x := range width {
			img.Pix[y*img.Stride+4*x+3] = 255 // Alpha channel.
		}
	}
	return img
}

// Batch converts all images in f.
func (ti *ToImageConfig) Batch(f *featuremaps.FeatureMap[float32]) []image.Image {
	images := make([]image.Image, 0, f.Batch())
	for ii := range f.Batch() {
		images = append(images, ti.Single(f, ii))
	}
	return images
}
