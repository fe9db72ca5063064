package pipeline

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-medimage-pipeline/internal/narray"
)

func decodePNG(t *testing.T, data []byte) (width, height int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestExportPreviewSingleImage(t *testing.T) {
	a := newArray(t, narray.Float64, []float64{0, 64, 128, 255, 32, 96}, 2, 3)

	images, err := ExportPreview(a, 32)
	require.NoError(t, err)
	require.Len(t, images, 1)

	w, h := decodePNG(t, images[0])
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
}

func TestExportPreviewOneImagePerSlice(t *testing.T) {
	data := make([]float64, 5*4*4)
	for i := range data {
		data[i] = float64(i)
	}
	a := newArray(t, narray.Uint8, data, 5, 4, 4)

	images, err := ExportPreview(a, 32)
	require.NoError(t, err)
	require.Len(t, images, 5)
	for _, img := range images {
		w, h := decodePNG(t, img)
		assert.Equal(t, 4, w)
		assert.Equal(t, 4, h)
	}
}

func TestExportPreviewHonorsCap(t *testing.T) {
	data := make([]float64, 40*2*2)
	a := newArray(t, narray.Float64, data, 40, 2, 2)

	images, err := ExportPreview(a, 32)
	require.NoError(t, err)
	assert.Len(t, images, 32)

	images, err = ExportPreview(a, 0)
	require.NoError(t, err)
	assert.Len(t, images, 40)
}

func TestExportPreviewScalesPerSlice(t *testing.T) {
	// Slice scaling is independent: a dim slice still spans the full
	// gray range in its own preview.
	data := []float64{
		0, 10,
		5, 10,

		0, 1000,
		500, 1000,
	}
	a := newArray(t, narray.Float64, data, 2, 2, 2)

	images, err := ExportPreview(a, 32)
	require.NoError(t, err)
	require.Len(t, images, 2)

	for i, raw := range images {
		img, err := png.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		gray, ok := img.(*image.Gray)
		require.True(t, ok)

		lo, hi := uint8(255), uint8(0)
		for _, p := range gray.Pix {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		assert.Equal(t, uint8(0), lo, "slice %d", i)
		assert.Equal(t, uint8(255), hi, "slice %d", i)
	}
}

func TestExportPreviewConstantSlice(t *testing.T) {
	a := newArray(t, narray.Float64, []float64{7, 7, 7, 7}, 2, 2)

	images, err := ExportPreview(a, 32)
	require.NoError(t, err)
	w, h := decodePNG(t, images[0])
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
}

func TestExportPreviewRejectsUnsupportedShapes(t *testing.T) {
	one, err := narray.New(narray.Float64, 8)
	require.NoError(t, err)
	_, err = ExportPreview(one, 32)
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	four, err := narray.New(narray.Float64, 2, 2, 2, 2)
	require.NoError(t, err)
	_, err = ExportPreview(four, 32)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}
