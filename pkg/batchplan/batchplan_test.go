// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchplan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	plan, err := New([]string{"e", "b", "a", "d", "c"}, []string{"b", "d"}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {"e"}}, plan.Batches())
	assert.Equal(t, []string{"a", "c", "e"}, plan.Pending())
	assert.Equal(t, 2, plan.NumBatches())
	assert.Equal(t, 3, plan.NumPending())
	assert.Equal(t, 2, plan.BatchSize())
	assert.Equal(t, []string{"e"}, plan.Batch(1))

	// Returned batches are copies.
	plan.Batch(0)[0] = "z"
	assert.Equal(t, "a", plan.Batch(0)[0])
}

func TestCoverage(t *testing.T) {
	var source []string
	for ii := range 23 {
		source = append(source, strings.Repeat("x", ii+1))
	}
	destination := []string{"xxx", "xxxxxxx", "not-in-source"}
	for batchSize := 1; batchSize <= 25; batchSize++ {
		plan, err := New(source, destination, batchSize)
		require.NoError(t, err)
		seen := make(map[string]int)
		for ii, batch := range plan.Batches() {
			require.LessOrEqual(t, len(batch), batchSize)
			if ii < plan.NumBatches()-1 {
				require.Equal(t, batchSize, len(batch))
			}
			for _, id := range batch {
				seen[id]++
			}
		}
		require.Len(t, seen, 21)
		for id, count := range seen {
			require.Equalf(t, 1, count, "id %q processed %d times", id, count)
			require.NotContains(t, destination, id)
		}
	}
}

func TestResume(t *testing.T) {
	source := []string{"a", "b", "c", "d", "e"}
	first, err := New(source, []string{"b", "d"}, 2)
	require.NoError(t, err)

	destination := append([]string{"b", "d"}, first.Pending()...)
	second, err := New(source, destination, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NumPending())
	assert.Equal(t, 0, second.NumBatches())
}

func TestInvalidBatchSize(t *testing.T) {
	_, err := New([]string{"a"}, nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBatchSize))
}

func TestFromDirs(t *testing.T) {
	sourceDir := t.TempDir()
	destinationDir := filepath.Join(t.TempDir(), "samples")
	for _, name := range []string{"a.png", "b.png", "c.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(sourceDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(sourceDir, "d.png"), 0o755))
	isImage := func(name string) bool { return !strings.HasSuffix(name, ".txt") }

	// Destination doesn't exist yet: everything is pending.
	plan, err := FromDirs(sourceDir, destinationDir, 2, isImage)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.png", "b.png"}, {"c.jpg"}}, plan.Batches())

	require.NoError(t, os.Mkdir(destinationDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(destinationDir, "b.png"), []byte("x"), 0o644))
	plan, err = FromDirs(sourceDir, destinationDir, 2, isImage)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.png", "c.jpg"}}, plan.Batches())

	_, err = FromDirs(filepath.Join(sourceDir, "missing"), destinationDir, 2, nil)
	require.Error(t, err)
}
