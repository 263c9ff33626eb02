// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SizeMultiple is the granularity of the image sizes accepted by the model: loaded
// images are cropped down (by resizing) to a multiple of it.
const SizeMultiple = 32

// IsImageFile returns whether the file name has an extension of a supported image format.
func IsImageFile(name string) bool {
	_, err := imaging.FormatFromFilename(name)
	return err == nil
}

// Load decodes the image in filePath, applying the EXIF orientation if present.
func Load(filePath string) (image.Image, error) {
	img, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image from %q", filePath)
	}
	return img, nil
}

// Preprocess prepares a loaded image to be used as the initial image of the sampler:
//
//  1. Width and height are reduced to a multiple of SizeMultiple (Lanczos resampling).
//  2. The shortest side is resized to shortSide, preserving the aspect ratio. If
//     shortSide is 0, this step is skipped.
func Preprocess(img image.Image, shortSide int) (*image.NRGBA, error) {
	size := img.Bounds().Size()
	width, height := size.X-size.X%SizeMultiple, size.Y-size.Y%SizeMultiple
	if width == 0 || height == 0 {
		return nil, errors.Errorf("image of size %s is too small, it must be at least %dx%d",
			size, SizeMultiple, SizeMultiple)
	}
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	if shortSide <= 0 {
		return resized, nil
	}
	if width <= height {
		height = int(float64(shortSide) * float64(height) / float64(width))
		width = shortSide
	} else {
		width = int(float64(shortSide) * float64(width) / float64(height))
		height = shortSide
	}
	return imaging.Resize(resized, width, height, imaging.Linear), nil
}

// LoadBatch loads and preprocesses the images named in dir, and returns them as one
// feature map in the [-1, 1] range, shaped `[len(names), 3, height, width]`.
//
// All images must have the same size after preprocessing.
func LoadBatch(dir string, names []string, shortSide int) (*featuremaps.FeatureMap[float32], error) {
	batch := make([]image.Image, 0, len(names))
	for _, name := range names {
		filePath := filepath.Join(dir, name)
		img, err := Load(filePath)
		if err != nil {
			return nil, err
		}
		klog.V(2).Infof("loaded input image of size %s from %q", img.Bounds().Size(), filePath)
		preprocessed, err := Preprocess(img, shortSide)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to preprocess %q", filePath)
		}
		batch = append(batch, preprocessed)
	}
	f, err := ToFeatureMap().Range(-1, 1).Batch(batch)
	if err != nil {
		return nil, errors.WithMessagef(err, "images %v can't be batched together", names)
	}
	return f, nil
}

// Save encodes img to filePath. The format is taken from the file extension.
func Save(img image.Image, filePath string) error {
	if err := imaging.Save(img, filePath); err != nil {
		return errors.Wrapf(err, "failed to save image to %q", filePath)
	}
	return nil
}

// SaveBatch saves each image of f (values in [0, 1]) to dir, using the corresponding name.
// Pixel values are truncated to 8 bits.
func SaveBatch(f *featuremaps.FeatureMap[float32], dir string, names []string) error {
	if len(names) != f.Batch() {
		return errors.Errorf("SaveBatch: %d names given for %d images", len(names), f.Batch())
	}
	converter := ToImage().Truncate()
	for ii, name := range names {
		if err := Save(converter.Single(f, ii), filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
