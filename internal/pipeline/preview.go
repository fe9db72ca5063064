package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"go-medimage-pipeline/internal/narray"
)

// previewWorkers bounds parallel slice rendering. Slices are
// independent, so rendering them concurrently is safe.
const previewWorkers = 4

// ExportPreview renders an array to PNG previews for human inspection:
// one image per 2D slice along the leading axis for a 3-D array, a
// single image for a 2-D array, capped at maxImages. Each slice is
// min-max scaled to uint8 independently; that scaling is display-only
// and never written back as a processed artifact.
//
// Only grayscale (H,W) and (N,H,W) layouts are renderable; any other
// rank is rejected with the unsupported-shape error.
func ExportPreview(a *narray.Array, maxImages int) ([][]byte, error) {
	switch a.NDim() {
	case 2:
		img, err := renderSlice(a)
		if err != nil {
			return nil, err
		}
		return [][]byte{img}, nil
	case 3:
	default:
		return nil, fmt.Errorf("preview: %w: expected (H,W) or (N,H,W), got shape %v", ErrUnsupportedShape, a.Shape)
	}

	count := a.Shape[0]
	if maxImages > 0 && count > maxImages {
		count = maxImages
	}

	images := make([][]byte, count)
	errs := make([]error, count)
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := previewWorkers
	if count < workers {
		workers = count
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				images[i], errs[i] = renderSlice(a.Slice(i))
			}
		}()
	}
	for i := 0; i < count; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return images, nil
}

// renderSlice encodes one 2-D slice as a grayscale PNG, scaling the
// slice's own value range onto [0, 255].
func renderSlice(slice *narray.Array) ([]byte, error) {
	h, w := slice.Shape[0], slice.Shape[1]
	img := image.NewGray(image.Rect(0, 0, w, h))

	lo, hi := slice.Min(), slice.Max()
	span := hi - lo
	if span <= 1e-12 {
		span = 1.0
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (slice.Data[y*w+x] - lo) / span * 255.0
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.Pix[y*img.Stride+x] = uint8(v)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("preview: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
