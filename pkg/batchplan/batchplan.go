// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batchplan computes which images still need processing and splits them in
// batches, so that an interrupted run can be resumed by simply running it again.
//
// The pending set is the source collection minus whatever is already present in the
// destination collection. It is sorted lexicographically, so repeated runs over the
// same directories produce the same batches. The plan is computed once, from a
// snapshot taken at startup, and is not affected by files written afterward.
package batchplan

import (
	"slices"

	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/gomlx/superres/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrInvalidBatchSize is returned when the requested batch size is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be > 0")

// Plan is an ordered sequence of batches of item identifiers (file names). Every batch
// has the requested size, except possibly the last one, which may be smaller.
type Plan struct {
	batchSize int
	pending   []string
	batches   [][]string
}

// Pending returns the identifiers in source that are not in destination, sorted
// lexicographically. Duplicates in source are dropped.
func Pending(source, destination []string) []string {
	return sets.Sorted(sets.MakeWith(source...).Sub(sets.MakeWith(destination...)))
}

// Chunk splits the ordered ids in consecutive groups of batchSize. The last group
// may be smaller.
func Chunk(ids []string, batchSize int) ([][]string, error) {
	if batchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidBatchSize, "got %d", batchSize)
	}
	chunks := make([][]string, 0, (len(ids)+batchSize-1)/batchSize)
	for chunk := range slices.Chunk(ids, batchSize) {
		chunks = append(chunks, slices.Clone(chunk))
	}
	return chunks, nil
}

// New creates a Plan for the source identifiers not yet present in destination.
func New(source, destination []string, batchSize int) (*Plan, error) {
	pending := Pending(source, destination)
	batches, err := Chunk(pending, batchSize)
	if err != nil {
		return nil, err
	}
	return &Plan{batchSize: batchSize, pending: pending, batches: batches}, nil
}

// FromDirs lists sourceDir and destinationDir once and creates a Plan with the files in
// sourceDir that are not yet in destinationDir.
//
// Only files accepted by filter are considered; a nil filter accepts every file.
// A missing destinationDir is treated as empty, a missing sourceDir is an error.
func FromDirs(sourceDir, destinationDir string, batchSize int, filter func(name string) bool) (*Plan, error) {
	source, err := fsutil.ListFileNames(sourceDir)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to list source images")
	}
	var destination []string
	exists, err := fsutil.FileExists(destinationDir)
	if err != nil {
		return nil, err
	}
	if exists {
		destination, err = fsutil.ListFileNames(destinationDir)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to list completed images")
		}
	}
	if filter != nil {
		source = slices.DeleteFunc(source, func(name string) bool { return !filter(name) })
	}
	plan, err := New(source, destination, batchSize)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("batchplan: %d source files in %q, %d already in %q, %d pending in %d batches",
		len(source), sourceDir, len(destination), destinationDir, plan.NumPending(), plan.NumBatches())
	return plan, nil
}

// BatchSize is the requested size of the batches.
func (p *Plan) BatchSize() int { return p.batchSize }

// NumBatches returns the number of batches in the plan.
func (p *Plan) NumBatches() int { return len(p.batches) }

// NumPending returns the total number of items to process.
func (p *Plan) NumPending() int { return len(p.pending) }

// Pending returns a copy of all pending identifiers, in processing order.
func (p *Plan) Pending() []string { return slices.Clone(p.pending) }

// Batch returns a copy of the i-th batch.
func (p *Plan) Batch(i int) []string { return slices.Clone(p.batches[i]) }

// Batches returns a copy of all batches, in processing order.
func (p *Plan) Batches() [][]string {
	batches := make([][]string, len(p.batches))
	for ii, batch := range p.batches {
		batches[ii] = slices.Clone(batch)
	}
	return batches
}
