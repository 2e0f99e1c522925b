package tensor_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/tensor"
)

type hostBuffer struct {
	data    []float32
	shape   []int
	strides []int
}

func (h *hostBuffer) DataPtr() unsafe.Pointer { return unsafe.Pointer(&h.data[0]) }
func (h *hostBuffer) Shape() []int            { return h.shape }
func (h *hostBuffer) Stride() []int           { return h.strides }
func (h *hostBuffer) DType() tensor.DataType  { return tensor.Float32 }
func (h *hostBuffer) Device() tensor.Device   { return tensor.CPU }

func TestFromSliceRoundTrip(t *testing.T) {
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, tensor.Float32, x.DType())
	assert.Equal(t, tensor.CPU, x.Device())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.ToSlice[float32](x))

	_, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{3})
	assert.Error(t, err)
}

func TestCast(t *testing.T) {
	x := tensor.MustFromSlice([]int32{1, -2, 3}, tensor.Shape{3})
	y, err := tensor.Cast(x, tensor.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 3}, y.AsFloat64())
}

func TestBorrowSharesMemory(t *testing.T) {
	buf := &hostBuffer{data: []float32{1, 2, 3, 4}, shape: []int{2, 2}, strides: []int{2, 1}}

	view, err := tensor.Borrow(buf)
	require.NoError(t, err)
	assert.True(t, view.IsBorrowed())

	buf.data[3] = 40
	assert.Equal(t, []float32{1, 2, 3, 40}, tensor.ToSlice[float32](view))
}
