// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/core/featuremaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 255, A: 255})
		}
	}
	return img
}

func TestToFeatureMapAndBack(t *testing.T) {
	img := gradientImage(5, 3)
	f := ToFeatureMap().Single(img)
	assert.Equal(t, []int{1, 3, 3, 5}, f.Shape().Dimensions)
	assert.InDelta(t, 4.0/255.0, f.At(0, 0, 2, 4), 1e-6)
	assert.InDelta(t, 2.0/255.0, f.At(0, 1, 2, 4), 1e-6)
	assert.InDelta(t, 1.0, f.At(0, 2, 0, 0), 1e-6)

	back := ToImage().Single(f, 0)
	assert.Equal(t, img.Pix, back.Pix)

	// [-1, 1] range.
	f, err := ToFeatureMap().Range(-1, 1).Batch([]image.Image{img, img})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 3, 5}, f.Shape().Dimensions)
	assert.InDelta(t, -1.0, f.At(1, 0, 0, 0), 1e-6)
	assert.InDelta(t, 1.0, f.At(1, 2, 0, 0), 1e-6)
	back = ToImage().Range(-1, 1).Batch(f)[1].(*image.NRGBA)
	assert.Equal(t, img.Pix, back.Pix)

	// Mismatched sizes.
	_, err = ToFeatureMap().Batch([]image.Image{img, gradientImage(3, 5)})
	require.Error(t, err)
	_, err = ToFeatureMap().Batch(nil)
	require.Error(t, err)
}

func TestToImageClips(t *testing.T) {
	f := ToFeatureMap().Single(gradientImage(2, 2))
	f.Set(0, 0, 0, 0, 7)
	f.Set(0, 1, 0, 0, -3)
	img := ToImage().Single(f, 0)
	assert.Equal(t, uint8(255), img.Pix[0])
	assert.Equal(t, uint8(0), img.Pix[1])
	assert.Equal(t, uint8(255), img.Pix[3])
}

func TestToImageTruncate(t *testing.T) {
	f := featuremaps.FromFlat([]float32{
		0.999, 0.5, 0.1,
		0.999, 0.5, 0.1,
		0.999, 0.5, 0.1,
	}, 1, 3, 1, 3)
	rounded := ToImage().Single(f, 0)
	truncated := ToImage().Truncate().Single(f, 0)
	// 0.999*255=254.745, 0.5*255=127.5, 0.1*255=25.5
	assert.Equal(t, []uint8{255, 255, 255, 255}, rounded.Pix[0:4])
	assert.Equal(t, []uint8{254, 254, 254, 255}, truncated.Pix[0:4])
	assert.Equal(t, uint8(128), rounded.Pix[4])
	assert.Equal(t, uint8(127), truncated.Pix[4])
	assert.Equal(t, uint8(25), truncated.Pix[8])

	dir := t.TempDir()
	require.NoError(t, SaveBatch(f, dir, []string{"t.png"}))
	saved, err := Load(filepath.Join(dir, "t.png"))
	require.NoError(t, err)
	assert.Equal(t, truncated.Pix, imaging.Clone(saved).Pix)
}

func TestPreprocess(t *testing.T) {
	img := gradientImage(100, 70)
	out, err := Preprocess(img, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(96, 64), out.Bounds().Size())

	out, err = Preprocess(img, 32)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(48, 32), out.Bounds().Size())

	_, err = Preprocess(gradientImage(20, 100), 0)
	require.Error(t, err)
}

func TestLoadSaveBatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(gradientImage(64, 64), filepath.Join(dir, "a.png")))
	require.NoError(t, imaging.Save(gradientImage(64, 64), filepath.Join(dir, "b.png")))

	f, err := LoadBatch(dir, []string{"a.png", "b.png"}, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 16, 16}, f.Shape().Dimensions)
	for _, v := range f.Flat() {
		require.GreaterOrEqual(t, v, float32(-1))
		require.LessOrEqual(t, v, float32(1))
	}

	_, err = LoadBatch(dir, []string{"missing.png"}, 16)
	require.Error(t, err)

	outDir := t.TempDir()
	zeroToOne := f.Map(func(v float32) float32 { return (v + 1) / 2 })
	require.NoError(t, SaveBatch(zeroToOne, outDir, []string{"a.png", "b.png"}))
	loaded, err := Load(filepath.Join(outDir, "b.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 16), loaded.Bounds().Size())

	require.Error(t, SaveBatch(zeroToOne, outDir, []string{"a.png"}))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.png"))
	assert.True(t, IsImageFile("b.JPG"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("README"))
}
