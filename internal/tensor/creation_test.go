package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, Float64, raw.DType())
	assert.Equal(t, []float64{1, 2, 3, 4}, raw.AsFloat64())

	_, err = FromSlice([]float64{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
}

func TestFromSliceCopies(t *testing.T) {
	src := []int32{1, 2, 3}
	raw := MustFromSlice(src, Shape{3})
	src[0] = 100
	assert.Equal(t, int32(1), raw.AsInt32()[0])
}

func TestCast(t *testing.T) {
	raw := MustFromSlice([]float32{1.5, -2, 3}, Shape{3})

	asInt, err := Cast(raw, Int32)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 3}, asInt.AsInt32())

	asF64, err := Cast(raw, Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 3}, asF64.AsFloat64())

	same, err := Cast(raw, Float32)
	require.NoError(t, err)
	assert.NotSame(t, raw, same)
	assert.Equal(t, raw.AsFloat32(), same.AsFloat32())
}

func TestFromAny(t *testing.T) {
	raw, ok := FromAny([]uint64{7, 8})
	require.True(t, ok)
	assert.Equal(t, Uint64, raw.DType())
	assert.Equal(t, Shape{2}, raw.Shape())

	_, ok = FromAny("not a buffer")
	assert.False(t, ok)
}

func TestDataTypeOf(t *testing.T) {
	assert.Equal(t, Float32, DataTypeOf[float32]())
	assert.Equal(t, Uint64, DataTypeOf[uint64]())
	assert.Equal(t, "keep", KeepDType.String())
}
