package narray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesShapeAndDtype(t *testing.T) {
	a, err := New(Float64, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 2, a.NDim())

	_, err = New(Float64)
	assert.Error(t, err)

	_, err = New(Float64, 3, 0)
	assert.Error(t, err)

	_, err = New(Dtype("complex128"), 2, 2)
	assert.Error(t, err)
}

func TestSliceSharesData(t *testing.T) {
	a, err := New(Float64, 2, 2, 2)
	require.NoError(t, err)
	for i := range a.Data {
		a.Data[i] = float64(i)
	}

	assert.Equal(t, 4, a.SliceLen())

	s := a.Slice(1)
	assert.Equal(t, []int{2, 2}, s.Shape)
	assert.Equal(t, []float64{4, 5, 6, 7}, s.Data)

	// Views alias the parent data.
	s.Data[0] = -1
	assert.Equal(t, -1.0, a.Data[4])
}

func TestCloneIsIndependent(t *testing.T) {
	a, err := New(Uint8, 2, 2)
	require.NoError(t, err)
	a.Data[0] = 9

	b := a.Clone()
	b.Data[0] = 7
	assert.Equal(t, 9.0, a.Data[0])
	assert.Equal(t, a.Shape, b.Shape)
	assert.Equal(t, a.Dtype, b.Dtype)
}

func TestMinMax(t *testing.T) {
	a, err := New(Float64, 4)
	require.NoError(t, err)
	a.Data = []float64{3, -2, 7, 0}
	assert.Equal(t, -2.0, a.Min())
	assert.Equal(t, 7.0, a.Max())
}

func TestSameShape(t *testing.T) {
	a, _ := New(Float64, 2, 3)
	b, _ := New(Uint8, 2, 3)
	c, _ := New(Float64, 3, 2)
	d, _ := New(Float64, 2, 3, 1)

	assert.True(t, SameShape(a, b))
	assert.False(t, SameShape(a, c))
	assert.False(t, SameShape(a, d))
}
