package cpu

import (
	"testing"
	"unsafe"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Helper to create a test backend that fans out even on tiny inputs.
func newTestBackend() *CPUBackend {
	return NewWithConfig(Config{
		Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
		Seed:     42,
		Logger:   zerolog.Nop(),
	})
}

// hostHandle is a foreign tensor backed by a Go slice.
type hostHandle struct {
	data   []float32
	shape  []int
	stride []int
	device tensor.Device
}

func (h hostHandle) DataPtr() unsafe.Pointer {
	if len(h.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&h.data[0])
}
func (h hostHandle) Shape() []int            { return h.shape }
func (h hostHandle) Stride() []int           { return h.stride }
func (h hostHandle) DType() tensor.DataType  { return tensor.Float32 }
func (h hostHandle) Device() tensor.Device   { return h.device }

func f32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

func f64(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

func i32(t *testing.T, data ...int32) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape{len(data)})
	require.NoError(t, err)
	return x
}

// TestCPUBackend_New tests backend creation.
func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestCPUBackend_Alloc(t *testing.T) {
	backend := newTestBackend()

	x, err := backend.Alloc(tensor.Shape{2, 3}, tensor.Float64)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, make([]float64, 6), x.AsFloat64())

	_, err = backend.Alloc(tensor.Shape{-1}, tensor.Float32)
	assert.ErrorIs(t, err, ops.ErrInvalidArgument)
}

func TestCPUBackend_Asarray(t *testing.T) {
	backend := newTestBackend()

	t.Run("NativeKeep", func(t *testing.T) {
		x := f32(t, []float32{1, 2}, 2)
		got, err := backend.Asarray(x, tensor.KeepDType)
		require.NoError(t, err)
		assert.Same(t, x, got)

		got, err = backend.Asarray(x, tensor.Float32)
		require.NoError(t, err)
		assert.Same(t, x, got)
	})

	t.Run("NativeCast", func(t *testing.T) {
		x := f32(t, []float32{1.5, -2}, 2)
		got, err := backend.Asarray(x, tensor.Float64)
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, -2}, got.AsFloat64())
	})

	t.Run("Slice", func(t *testing.T) {
		got, err := backend.Asarray([]int32{3, 4, 5}, tensor.KeepDType)
		require.NoError(t, err)
		assert.Equal(t, tensor.Int32, got.DType())
		assert.Equal(t, []int32{3, 4, 5}, got.AsInt32())

		got, err = backend.Asarray([]uint64{7}, tensor.Float32)
		require.NoError(t, err)
		assert.Equal(t, []float32{7}, got.AsFloat32())
	})

	t.Run("ForeignZeroCopy", func(t *testing.T) {
		h := hostHandle{data: []float32{1, 2, 3, 4, 5, 6}, shape: []int{2, 3}, stride: []int{3, 1}}
		got, err := backend.Asarray(h, tensor.KeepDType)
		require.NoError(t, err)
		assert.True(t, got.IsBorrowed())

		h.data[4] = 50
		assert.Equal(t, float32(50), got.AsFloat32()[4])
	})

	t.Run("ForeignStrided", func(t *testing.T) {
		// Column-major (2, 3): element (r, c) lives at r + 2c.
		h := hostHandle{data: []float32{1, 4, 2, 5, 3, 6}, shape: []int{2, 3}, stride: []int{1, 2}}
		got, err := backend.Asarray(h, tensor.KeepDType)
		require.NoError(t, err)
		assert.False(t, got.IsContiguous())
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.ToSlice[float32](got))
	})

	t.Run("ForeignBadStride", func(t *testing.T) {
		h := hostHandle{data: []float32{1, 2}, shape: []int{2}, stride: []int{-1}}
		_, err := backend.Asarray(h, tensor.KeepDType)
		assert.ErrorIs(t, err, ops.ErrInvalidStride)
	})

	t.Run("ForeignDevice", func(t *testing.T) {
		h := hostHandle{data: []float32{1}, shape: []int{1}, stride: []int{1}, device: tensor.WebGPU}
		_, err := backend.Asarray(h, tensor.KeepDType)
		assert.ErrorIs(t, err, ops.ErrUnsupportedBuffer)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := backend.Asarray("nope", tensor.KeepDType)
		assert.ErrorIs(t, err, ops.ErrUnsupportedBuffer)

		_, err = backend.Asarray((*tensor.RawTensor)(nil), tensor.KeepDType)
		assert.ErrorIs(t, err, ops.ErrUnsupportedBuffer)
	})
}

func TestCPUBackend_WritesRejectStridedViews(t *testing.T) {
	backend := newTestBackend()
	// Column-major (2, 3) over a shared backing array.
	backing := []float32{1, -4, -2, 5, 3, -6}
	view := func(t *testing.T) *tensor.RawTensor {
		t.Helper()
		h := hostHandle{data: backing, shape: []int{2, 3}, stride: []int{1, 2}}
		x, err := backend.Asarray(h, tensor.KeepDType)
		require.NoError(t, err)
		require.False(t, x.IsContiguous())
		return x
	}
	dense := func(t *testing.T) *tensor.RawTensor {
		return f32(t, []float32{1, 1, 1, 1, 1, 1}, 2, 3)
	}

	cases := map[string]func(t *testing.T) error{
		"ReluInplace": func(t *testing.T) error {
			_, err := backend.ReluInplace(view(t))
			return err
		},
		"BackpropReluInplace": func(t *testing.T) error {
			_, err := backend.BackpropReluInplace(view(t), dense(t))
			return err
		},
		"ScatterAdd": func(t *testing.T) error {
			return backend.ScatterAdd(view(t), i32(t, 1), f32(t, []float32{1, 1, 1}, 1, 3))
		},
		"Adam": func(t *testing.T) error {
			cfg := ops.AdamConfig{Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, LearnRate: 0.1}
			return backend.Adam(view(t), dense(t), dense(t), dense(t), cfg)
		},
		"ClipGradient": func(t *testing.T) error {
			return backend.ClipGradient(view(t), 0.5)
		},
		"NormalInitInplace": func(t *testing.T) error {
			_, err := backend.NormalInitInplace(view(t), 3)
			return err
		},
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, run(t), ops.ErrInvalidStride)
			assert.Equal(t, []float32{1, -4, -2, 5, 3, -6}, backing)
		})
	}
}
