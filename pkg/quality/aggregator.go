// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quality

import (
	"github.com/pkg/errors"
)

// ErrScoreCountMismatch is returned by Aggregator.Mean when the number of collected
// scores differs from the number of expected images.
var ErrScoreCountMismatch = errors.New("number of scores doesn't match the number of pending images")

// Entry is the score of one image.
type Entry struct {
	ID    string
	Score float64
}

// Aggregator collects one score per processed image, in processing order.
type Aggregator struct {
	expected int
	entries  []Entry
}

// NewAggregator creates an Aggregator expecting exactly `expected` scores.
func NewAggregator(expected int) *Aggregator {
	return &Aggregator{expected: expected, entries: make([]Entry, 0, expected)}
}

// Add the score of the image identified by id.
func (a *Aggregator) Add(id string, score float64) {
	a.entries = append(a.entries, Entry{ID: id, Score: score})
}

// Count returns the number of scores collected so far.
func (a *Aggregator) Count() int { return len(a.entries) }

// Expected returns the number of scores expected.
func (a *Aggregator) Expected() int { return a.expected }

// Entries returns a copy of the scores collected so far, in order.
func (a *Aggregator) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Mean returns the arithmetic mean of all the scores.
//
// It returns an error wrapping ErrScoreCountMismatch if the number of scores collected
// is not the expected one, and an error if there are no scores at all.
func (a *Aggregator) Mean() (float64, error) {
	if len(a.entries) != a.expected {
		return 0, errors.Wrapf(ErrScoreCountMismatch, "collected %d scores for %d images", len(a.entries), a.expected)
	}
	if len(a.entries) == 0 {
		return 0, errors.New("no scores to average")
	}
	var sum float64
	for _, e := range a.entries {
		sum += e.Score
	}
	return sum / float64(len(a.entries)), nil
}
