// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package grid tiles batches of images into one composite image, for visual inspection.
//
// Batches smaller than the target size (usually the last one) are padded with blank
// (zero-valued) images first, so that every batch occupies the same number of cells.
package grid

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// DefaultPadding is the number of blank pixels between cells and around the grid.
const DefaultPadding = 2

// FilePrefix of the saved grid images.
const FilePrefix = "grid-"

// PadBatches returns the batches with every batch smaller than size padded with
// zero-valued images shaped like its first image. Batches already of size (or larger)
// are returned as is. If size <= 0, the largest batch size is used.
func PadBatches[T constraints.Float](batches []*featuremaps.FeatureMap[T], size int) []*featuremaps.FeatureMap[T] {
	if size <= 0 {
		for _, batch := range batches {
			size = max(size, batch.Batch())
		}
	}
	padded := make([]*featuremaps.FeatureMap[T], 0, len(batches))
	for _, batch := range batches {
		if batch.Batch() >= size {
			padded = append(padded, batch)
			continue
		}
		padded = append(padded, featuremaps.Concatenate(batch, featuremaps.ZerosLike(batch, size-batch.Batch())))
	}
	return padded
}

// Tile arranges the images of f row-major into a grid with the given number of columns,
// and returns it as a feature map with one image.
//
// There are padding zero-valued pixels between the cells and around the grid. If the
// number of images is not a multiple of columns, the trailing cells are left blank.
// If there are fewer images than columns, the grid is only as wide as the number of images.
func Tile[T constraints.Float](f *featuremaps.FeatureMap[T], columns, padding int) *featuremaps.FeatureMap[T] {
	if columns <= 0 {
		exceptions.Panicf("grid.Tile(): columns must be > 0, got %d", columns)
	}
	if padding < 0 {
		exceptions.Panicf("grid.Tile(): padding must be >= 0, got %d", padding)
	}
	numImages := f.Batch()
	numColumns := min(columns, numImages)
	numRows := (numImages + numColumns - 1) / numColumns
	cellHeight, cellWidth := f.Height()+padding, f.Width()+padding
	gridHeight, gridWidth := cellHeight*numRows+padding, cellWidth*numColumns+padding
	channels := f.Channels()
	grid := featuremaps.Make[T](1, channels, gridHeight, gridWidth)
	for ii := range numImages {
		row, col := ii/numColumns, ii%numColumns
		top, left := row*cellHeight+padding, col*cellWidth+padding
		for c := range channels {
			src := f.Plane(ii, c)
			dst := grid.Plane(0, c)
			for y := range f.Height() {
				copy(dst[(top+y)*gridWidth+left:(top+y)*gridWidth+left+f.Width()], src[y*f.Width():(y+1)*f.Width()])
			}
		}
	}
	return grid
}

// CheckCompatible returns an error if the images of the batches don't all have the same
// channels, height and width, in which case they can't be tiled together.
func CheckCompatible[T constraints.Float](batches []*featuremaps.FeatureMap[T]) error {
	if len(batches) == 0 {
		return errors.New("no batches to tile")
	}
	first := batches[0]
	for ii, batch := range batches[1:] {
		if batch.Channels() != first.Channels() || batch.Height() != first.Height() || batch.Width() != first.Width() {
			return errors.Errorf("batch #%d has images shaped %s, incompatible with batch #0 shaped %s",
				ii+1, batch.Shape(), first.Shape())
		}
	}
	return nil
}

// Assemble pads the batches to batchSize, concatenates them in order and tiles the
// result with the given number of columns. See PadBatches and Tile.
//
// It panics if the images are not all the same size, see CheckCompatible.
func Assemble[T constraints.Float](batches []*featuremaps.FeatureMap[T], batchSize, columns, padding int) *featuremaps.FeatureMap[T] {
	if len(batches) == 0 {
		exceptions.Panicf("grid.Assemble() requires at least one batch")
	}
	return Tile(featuremaps.Concatenate(PadBatches(batches, batchSize)...), columns, padding)
}

// FileName returns the file name of the grid with the given sequence number.
func FileName(index int) string {
	return fmt.Sprintf("%s%04d.png", FilePrefix, index)
}

var reFileName = regexp.MustCompile(`^` + regexp.QuoteMeta(FilePrefix) + `(\d{4,})\.png$`)

// NextIndex returns the sequence number to use for the next grid saved in dir: one
// past the largest already there, or 0 if there is none.
func NextIndex(dir string) (int, error) {
	names, err := fsutil.ListFileNames(dir)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, name := range names {
		matches := reFileName.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		index, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		next = max(next, index+1)
	}
	return next, nil
}
