package pipeline

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"go-medimage-pipeline/internal/narray"
	"go-medimage-pipeline/pkg/utils"
)

// sigmaFloor keeps a constant source from producing a zero-width
// distribution.
const sigmaFloor = 1e-6

// Synthesize generates the digital twin: a new array of identical shape
// and dtype whose values are drawn independently from a Gaussian
// matched to the source's empirical mean and population standard
// deviation. Moments are computed per sample along the leading axis for
// stacks of three or more dimensions, globally for a single image.
// Draws are clipped to the source's observed [min, max] range so
// synthetic values never leave plausible bounds.
//
// The generator is seeded explicitly per call, so the same source and
// seed always produce the same twin; there is no reliance on global
// randomness.
func Synthesize(a *narray.Array, seed uint64) (*narray.Array, error) {
	if a.NDim() < 2 {
		return nil, fmt.Errorf("synthesize: %w: expected at least 2 dimensions, got shape %v", ErrUnsupportedShape, a.Shape)
	}

	out := a.Clone()
	src := rand.NewSource(seed)
	lo, hi := a.Min(), a.Max()

	if a.NDim() >= 3 {
		for i := 0; i < a.Shape[0]; i++ {
			sampleSlice(a.Slice(i), out.Slice(i), src, lo, hi)
		}
	} else {
		sampleSlice(a, out, src, lo, hi)
	}

	if isInteger(a.Dtype) {
		roundInPlace(out)
	}
	return out, nil
}

// sampleSlice fills dst with moment-matched Gaussian draws for one
// channel of the source.
func sampleSlice(src *narray.Array, dst *narray.Array, rng rand.Source, lo, hi float64) {
	mean := stat.Mean(src.Data, nil)
	sigma := stat.PopStdDev(src.Data, nil) + sigmaFloor

	dist := distuv.Normal{Mu: mean, Sigma: sigma, Src: rng}
	for i := range dst.Data {
		dst.Data[i] = utils.Clamp(dist.Rand(), lo, hi)
	}
}

func isInteger(d narray.Dtype) bool {
	switch d {
	case narray.Uint8, narray.Int16, narray.Int32, narray.Int64:
		return true
	}
	return false
}

func roundInPlace(a *narray.Array) {
	for i, v := range a.Data {
		if v >= 0 {
			a.Data[i] = float64(int64(v + 0.5))
		} else {
			a.Data[i] = float64(int64(v - 0.5))
		}
	}
}
