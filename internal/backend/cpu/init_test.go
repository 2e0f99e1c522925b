package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

func TestCPUBackend_NormalInit(t *testing.T) {
	backend := newTestBackend()
	W, _ := tensor.NewRaw(tensor.Shape{100, 100}, tensor.Float64, tensor.CPU)

	got, err := backend.NormalInit(W, 4)
	require.NoError(t, err)
	assert.NotSame(t, W, got)
	assert.Equal(t, W.Shape(), got.Shape())
	assert.Equal(t, make([]float64, 10000), W.AsFloat64(), "NormalInit must not touch W")

	var sum, sq float64
	for _, x := range got.AsFloat64() {
		sum += x
		sq += x * x
	}
	mean := sum / 10000
	std := math.Sqrt(sq/10000 - mean*mean)
	assert.InDelta(t, 0, mean, 0.03)
	assert.InDelta(t, 0.5, std, 0.03)
}

func TestCPUBackend_NormalInitInplace(t *testing.T) {
	backend := newTestBackend()
	W, _ := tensor.NewRaw(tensor.Shape{8}, tensor.Float32, tensor.CPU)

	got, err := backend.NormalInitInplace(W, 2)
	require.NoError(t, err)
	assert.Same(t, W, got)
	assert.NotEqual(t, make([]float32, 8), W.AsFloat32())
}

func TestCPUBackend_NormalInitSeeded(t *testing.T) {
	W, _ := tensor.NewRaw(tensor.Shape{16}, tensor.Float32, tensor.CPU)

	first, err := newTestBackend().NormalInit(W, 3)
	require.NoError(t, err)
	second, err := newTestBackend().NormalInit(W, 3)
	require.NoError(t, err)
	assert.Equal(t, first.AsFloat32(), second.AsFloat32())

	backend := newTestBackend()
	a, _ := backend.NormalInit(W, 3)
	b, _ := backend.NormalInit(W, 3)
	assert.NotEqual(t, a.AsFloat32(), b.AsFloat32())

	backend.Reseed(42)
	c, _ := backend.NormalInit(W, 3)
	assert.Equal(t, a.AsFloat32(), c.AsFloat32())
}

func TestCPUBackend_NormalInitErrors(t *testing.T) {
	backend := newTestBackend()
	W, _ := tensor.NewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)

	_, err := backend.NormalInit(W, 0)
	assert.ErrorIs(t, err, ops.ErrInvalidArgument)

	ints, _ := tensor.NewRaw(tensor.Shape{4}, tensor.Int32, tensor.CPU)
	_, err = backend.NormalInitInplace(ints, 4)
	assert.ErrorIs(t, err, ops.ErrUnsupportedDType)
}

func TestCPUBackend_PositionEncode(t *testing.T) {
	backend := newTestBackend()

	got, err := backend.PositionEncode(3, 4, ops.DefaultPositionPeriod)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, got.Shape())
	assert.Equal(t, tensor.Float32, got.DType())

	want := []float32{
		0, 1, 0, 1,
		0.84147098, 0.54030231, 0.0099998333, 0.99995,
	}
	assert.InDeltaSlice(t, want, got.AsFloat32()[:8], 1e-6)

	row2 := got.AsFloat32()[8:12]
	assert.InDelta(t, math.Sin(2), float64(row2[0]), 1e-6)
	assert.InDelta(t, math.Cos(0.02), float64(row2[3]), 1e-6)

	odd, err := backend.PositionEncode(2, 3, 10)
	require.NoError(t, err)
	// The last column of an odd width is a sine.
	assert.InDelta(t, math.Sin(1/math.Pow(10, 2.0/3)), float64(odd.AsFloat32()[5]), 1e-6)

	_, err = backend.PositionEncode(2, 4, 0)
	assert.ErrorIs(t, err, ops.ErrInvalidArgument)
}
