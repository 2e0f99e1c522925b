package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

func TestCPUBackend_ScatterAdd(t *testing.T) {
	backend := newTestBackend()
	out, _ := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	inputs := f32(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)

	// Duplicate id 0 accumulates both rows.
	require.NoError(t, backend.ScatterAdd(out, i32(t, 0, 2, 0), inputs))
	assert.Equal(t, []float32{6, 8, 0, 0, 3, 4}, out.AsFloat32())

	require.NoError(t, backend.ScatterAdd(out, i32(t, 1, 1, 1), inputs))
	assert.Equal(t, []float32{6, 8, 9, 12, 3, 4}, out.AsFloat32())
}

func TestCPUBackend_ScatterAddVector(t *testing.T) {
	backend := newTestBackend()
	out := f64(t, []float64{1, 1, 1}, 3)
	inputs := f64(t, []float64{0.5, 0.25}, 2)

	require.NoError(t, backend.ScatterAdd(out, i32(t, 2, 2), inputs))
	assert.Equal(t, []float64{1, 1, 1.75}, out.AsFloat64())
}

func TestCPUBackend_ScatterAddErrors(t *testing.T) {
	backend := newTestBackend()
	out, _ := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	inputs := f32(t, []float32{1, 2, 3, 4}, 2, 2)

	err := backend.ScatterAdd(out, i32(t, 0, 3), inputs)
	assert.ErrorIs(t, err, ops.ErrIndexOutOfRange)

	err = backend.ScatterAdd(out, i32(t, 0, -1), inputs)
	assert.ErrorIs(t, err, ops.ErrIndexOutOfRange)

	err = backend.ScatterAdd(out, i32(t, 0), inputs)
	assert.ErrorIs(t, err, ops.ErrShapeMismatch)

	wide := f32(t, []float32{1, 2, 3}, 1, 3)
	err = backend.ScatterAdd(out, i32(t, 0), wide)
	assert.ErrorIs(t, err, ops.ErrShapeMismatch)

	assert.Equal(t, make([]float32, 6), out.AsFloat32(), "failed calls leave out untouched")
}
