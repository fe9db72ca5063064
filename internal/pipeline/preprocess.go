package pipeline

import (
	"fmt"

	"go-medimage-pipeline/internal/model"
	"go-medimage-pipeline/internal/narray"
)

// PreprocessOps selects which transforms to apply. Operators always run
// in the canonical order denoise → normalize → resample, whatever order
// the request listed them in: denoising before normalization avoids
// amplifying filter artifacts, and resampling last keeps the spatial
// reduction operating on the final value range.
type PreprocessOps struct {
	Denoise   bool
	Normalize bool
	Resample  bool

	// DenoiseKernel is the window size per spatial axis; default 3.
	DenoiseKernel int
	// ResampleFactor is the decimation stride per axis; default 2.
	ResampleFactor int
}

// Defaults used when a request enables an operator without parameters.
const (
	DefaultDenoiseKernel  = 3
	DefaultResampleFactor = 2
)

// Preprocess applies the selected operators and returns the new array
// plus a provenance manifest of what actually ran with which resolved
// parameters. The input array is never mutated; persistence is the run
// state manager's job, not this function's.
func Preprocess(a *narray.Array, ops PreprocessOps) (*narray.Array, *model.Manifest, error) {
	kernel := ops.DenoiseKernel
	if kernel == 0 {
		kernel = DefaultDenoiseKernel
	}
	factor := ops.ResampleFactor
	if factor == 0 {
		factor = DefaultResampleFactor
	}

	out := a
	manifest := &model.Manifest{}

	if ops.Denoise {
		denoised, err := Denoise(out, kernel)
		if err != nil {
			return nil, nil, err
		}
		out = denoised
		manifest.Entries = append(manifest.Entries, model.ManifestEntry{
			Op:     "denoise",
			Params: map[string]interface{}{"kernel": kernel},
		})
	}
	if ops.Normalize {
		out = Normalize(out)
		manifest.Entries = append(manifest.Entries, model.ManifestEntry{Op: "normalize"})
	}
	if ops.Resample {
		resampled, err := Resample(out, factor)
		if err != nil {
			return nil, nil, err
		}
		out = resampled
		manifest.Entries = append(manifest.Entries, model.ManifestEntry{
			Op:     "resample",
			Params: map[string]interface{}{"factor": factor},
		})
	}

	if out == a {
		out = a.Clone()
	}
	return out, manifest, nil
}

// ------------------- Denoise -------------------

// Denoise replaces each element with the mean of its kernel-sized
// neighborhood. Border elements use a reduced window (no padding,
// wrapping or mirroring), which keeps the filter exactly reproducible.
// For arrays of three or more dimensions the leading axis is treated as
// the sample axis and filtering covers the trailing spatial axes.
func Denoise(a *narray.Array, kernel int) (*narray.Array, error) {
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("%w: denoise kernel must be a positive odd number, got %d", ErrInvalidParameter, kernel)
	}

	out := a.Clone()
	firstSpatial := 0
	if a.NDim() >= 3 {
		firstSpatial = 1
	}
	// A box mean with per-element reduced windows is separable: the
	// running sums and window counts both factor per axis.
	for axis := firstSpatial; axis < a.NDim(); axis++ {
		meanAlongAxis(out, axis, kernel)
	}
	return out, nil
}

// meanAlongAxis applies a 1-D reduced-window mean filter in place along
// the given axis.
func meanAlongAxis(a *narray.Array, axis, kernel int) {
	n := a.Shape[axis]
	inner := 1
	for _, d := range a.Shape[axis+1:] {
		inner *= d
	}
	outer := a.Len() / (n * inner)
	half := (kernel - 1) / 2

	line := make([]float64, n)
	prefix := make([]float64, n+1)
	for o := 0; o < outer; o++ {
		base := o * n * inner
		for i := 0; i < inner; i++ {
			for t := 0; t < n; t++ {
				line[t] = a.Data[base+t*inner+i]
			}
			for t := 0; t < n; t++ {
				prefix[t+1] = prefix[t] + line[t]
			}
			for t := 0; t < n; t++ {
				lo := t - half
				if lo < 0 {
					lo = 0
				}
				hi := t + half
				if hi > n-1 {
					hi = n - 1
				}
				a.Data[base+t*inner+i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
			}
		}
	}
}

// ------------------- Normalize -------------------

// Normalize min-max scales the array into [0, 1]. A constant array maps
// to all zeros rather than dividing by zero. The result is float64.
func Normalize(a *narray.Array) *narray.Array {
	out := a.Clone()
	out.Dtype = narray.Float64

	min, max := a.Min(), a.Max()
	if max == min {
		for i := range out.Data {
			out.Data[i] = 0
		}
		return out
	}
	span := max - min
	for i, v := range a.Data {
		out.Data[i] = (v - min) / span
	}
	return out
}

// ------------------- Resample -------------------

// Resample decimates the array by taking every factor-th element along
// every axis. Dimensions that the factor does not evenly divide are
// rejected, never truncated.
func Resample(a *narray.Array, factor int) (*narray.Array, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w: resample factor must be >= 1, got %d", ErrInvalidParameter, factor)
	}
	for _, d := range a.Shape {
		if d%factor != 0 {
			return nil, fmt.Errorf("%w: dimension %d not divisible by resample factor %d", ErrInvalidParameter, d, factor)
		}
	}

	outShape := make([]int, a.NDim())
	for i, d := range a.Shape {
		outShape[i] = d / factor
	}
	out, err := narray.New(a.Dtype, outShape...)
	if err != nil {
		return nil, err
	}

	inStrides := strides(a.Shape)
	idx := make([]int, a.NDim())
	for o := range out.Data {
		src := 0
		for ax := range idx {
			src += idx[ax] * factor * inStrides[ax]
		}
		out.Data[o] = a.Data[src]

		for ax := len(idx) - 1; ax >= 0; ax-- {
			idx[ax]++
			if idx[ax] < outShape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
	return out, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
