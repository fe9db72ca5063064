package narray

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampArray(t *testing.T, dtype Dtype, shape ...int) *Array {
	t.Helper()
	a, err := New(dtype, shape...)
	require.NoError(t, err)
	for i := range a.Data {
		a.Data[i] = float64(i % 200)
	}
	return a
}

func TestNPYRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		dtype Dtype
		shape []int
	}{
		{"float64 3d", Float64, []int{3, 4, 5}},
		{"float32 2d", Float32, []int{8, 8}},
		{"uint8 3d", Uint8, []int{2, 28, 28}},
		{"int16 1d", Int16, []int{17}},
		{"int32 2d", Int32, []int{5, 6}},
		{"int64 4d", Int64, []int{2, 3, 2, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := rampArray(t, tc.dtype, tc.shape...)

			payload, err := MarshalNPY(a)
			require.NoError(t, err)

			back, err := DecodeNPY(payload)
			require.NoError(t, err)
			assert.Equal(t, a.Shape, back.Shape)
			assert.Equal(t, a.Dtype, back.Dtype)
			assert.Equal(t, a.Data, back.Data)
		})
	}
}

func TestNPYFractionalFloatsSurviveExactly(t *testing.T) {
	a, err := New(Float64, 2, 2)
	require.NoError(t, err)
	a.Data = []float64{0.1, -3.75, 1e-12, 2.5e17}

	payload, err := MarshalNPY(a)
	require.NoError(t, err)
	back, err := DecodeNPY(payload)
	require.NoError(t, err)
	assert.Equal(t, a.Data, back.Data)
}

func TestNPYInt64ExactWithinFloat64IntegerRange(t *testing.T) {
	a, err := New(Int64, 4)
	require.NoError(t, err)
	a.Data = []float64{0, -1 << 40, 1<<52 + 1, 1 << 53}

	payload, err := MarshalNPY(a)
	require.NoError(t, err)
	back, err := DecodeNPY(payload)
	require.NoError(t, err)
	assert.Equal(t, a.Data, back.Data)
}

func TestNPYHeaderFormat(t *testing.T) {
	a := rampArray(t, Uint8, 3, 4)
	payload, err := MarshalNPY(a)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(payload, []byte("\x93NUMPY")))
	assert.Equal(t, byte(1), payload[6])
	// Data section must start on a 64-byte boundary for numpy mmap use.
	header := payload[:len(payload)-a.Len()]
	assert.Zero(t, len(header)%64)
	assert.Contains(t, string(header), "'descr': '|u1'")
	assert.Contains(t, string(header), "(3, 4)")
}

func TestNPYOneDimensionalShapeTuple(t *testing.T) {
	a := rampArray(t, Float64, 7)
	payload, err := MarshalNPY(a)
	require.NoError(t, err)
	assert.Contains(t, string(payload[:128]), "(7,)")

	back, err := DecodeNPY(payload)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, back.Shape)
}

func TestDecodeNPYRejectsBadPayloads(t *testing.T) {
	valid, err := MarshalNPY(rampArray(t, Float64, 2, 2))
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("NOTNPY"), valid[6:]...)
		_, err := DecodeNPY(bad)
		assert.Error(t, err)
	})
	t.Run("truncated data", func(t *testing.T) {
		_, err := DecodeNPY(valid[:len(valid)-8])
		assert.Error(t, err)
	})
	t.Run("fortran order", func(t *testing.T) {
		bad := bytes.Replace(valid, []byte("False"), []byte("True "), 1)
		_, err := DecodeNPY(bad)
		assert.ErrorContains(t, err, "fortran")
	})
	t.Run("big endian descr", func(t *testing.T) {
		bad := bytes.Replace(valid, []byte("<f8"), []byte(">f8"), 1)
		_, err := DecodeNPY(bad)
		assert.ErrorContains(t, err, "descr")
	})
}

func makeNPZ(t *testing.T, members map[string]*Array) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, arr := range members {
		w, err := zw.Create(name + ".npy")
		require.NoError(t, err)
		require.NoError(t, EncodeNPY(w, arr))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecodeNPZFindsImagesMember(t *testing.T) {
	images := rampArray(t, Uint8, 4, 8, 8)
	payload := makeNPZ(t, map[string]*Array{
		"labels": rampArray(t, Uint8, 4),
		"images": images,
	})

	back, err := DecodeNPZ(payload)
	require.NoError(t, err)
	assert.Equal(t, images.Shape, back.Shape)
	assert.Equal(t, images.Data, back.Data)
}

func TestDecodeNPZSearchOrder(t *testing.T) {
	train := rampArray(t, Uint8, 2, 4, 4)
	val := rampArray(t, Uint8, 3, 4, 4)
	payload := makeNPZ(t, map[string]*Array{
		"val_images":   val,
		"train_images": train,
	})

	back, err := DecodeNPZ(payload)
	require.NoError(t, err)
	// train_images outranks val_images in the search order.
	assert.Equal(t, train.Shape, back.Shape)
}

func TestDecodeNPZNoImagesMember(t *testing.T) {
	payload := makeNPZ(t, map[string]*Array{"labels": rampArray(t, Uint8, 4)})
	_, err := DecodeNPZ(payload)
	assert.ErrorContains(t, err, "could not find")
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	arr := rampArray(t, Float32, 4, 4)
	npy, err := MarshalNPY(arr)
	require.NoError(t, err)
	npz := makeNPZ(t, map[string]*Array{"images": arr})

	fromNPY, err := Load("raw/a.npy", npy)
	require.NoError(t, err)
	assert.Equal(t, arr.Data, fromNPY.Data)

	fromNPZ, err := Load("raw/a.npz", npz)
	require.NoError(t, err)
	assert.Equal(t, arr.Data, fromNPZ.Data)

	_, err = Load("raw/a.csv", npy)
	assert.ErrorContains(t, err, "unsupported input format")
}
