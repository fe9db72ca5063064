package narray

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Dtype identifies the element type an array was created with. The
// in-memory representation is always float64; the dtype is preserved so
// serialization round-trips the original element encoding. int64
// elements are exact only within ±2^53 (the float64 integer range);
// medical image stacks stay far below that bound.
type Dtype string

const (
	Uint8   Dtype = "uint8"
	Int16   Dtype = "int16"
	Int32   Dtype = "int32"
	Int64   Dtype = "int64"
	Float32 Dtype = "float32"
	Float64 Dtype = "float64"
)

// Array is an N-dimensional numeric array. Shape and dtype are fixed at
// creation; transforms always produce a new Array rather than mutating
// in place.
type Array struct {
	Shape []int     `json:"shape"`
	Dtype Dtype     `json:"dtype"`
	Data  []float64 `json:"-"`
}

// New allocates a zero-filled array with the given dtype and shape.
func New(dtype Dtype, shape ...int) (*Array, error) {
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, shape)
		}
		n *= dim
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("array must have at least one dimension")
	}
	if !validDtype(dtype) {
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
	return &Array{
		Shape: append([]int(nil), shape...),
		Dtype: dtype,
		Data:  make([]float64, n),
	}, nil
}

func validDtype(d Dtype) bool {
	switch d {
	case Uint8, Int16, Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	n := 1
	for _, dim := range a.Shape {
		n *= dim
	}
	return n
}

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.Shape) }

// SliceLen returns the number of elements in one leading-axis slice.
func (a *Array) SliceLen() int {
	if a.NDim() < 2 {
		return a.Len()
	}
	return a.Len() / a.Shape[0]
}

// Slice returns the i-th slice along the leading axis as a view sharing
// the underlying data. The result has shape Shape[1:].
func (a *Array) Slice(i int) *Array {
	n := a.SliceLen()
	return &Array{
		Shape: append([]int(nil), a.Shape[1:]...),
		Dtype: a.Dtype,
		Data:  a.Data[i*n : (i+1)*n],
	}
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	out := &Array{
		Shape: append([]int(nil), a.Shape...),
		Dtype: a.Dtype,
		Data:  make([]float64, len(a.Data)),
	}
	copy(out.Data, a.Data)
	return out
}

// Min returns the smallest element value.
func (a *Array) Min() float64 { return floats.Min(a.Data) }

// Max returns the largest element value.
func (a *Array) Max() float64 { return floats.Max(a.Data) }

// SameShape reports whether two arrays have identical shapes.
func SameShape(a, b *Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}
