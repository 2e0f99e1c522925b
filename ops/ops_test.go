package ops_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/backend/webgpu"
	"github.com/born-ml/kernels/ops"
	"github.com/born-ml/kernels/tensor"
)

func TestNew_CPU(t *testing.T) {
	cfg := ops.DefaultConfig()
	cfg.Device = "cpu"

	resolver, release, err := ops.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer release()

	assert.Nil(t, resolver.Device())
	assert.Equal(t, tensor.CPU, resolver.Default().Device())

	x := tensor.MustFromSlice([]float32{-1, 2}, tensor.Shape{2})
	y, err := resolver.Module(x).Relu(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2}, tensor.ToSlice[float32](y))
}

func TestNew_Auto(t *testing.T) {
	resolver, release, err := ops.New(nil, zerolog.Nop())
	require.NoError(t, err)
	defer release()

	if webgpu.IsAvailable() {
		assert.NotNil(t, resolver.Device())
	} else {
		assert.Nil(t, resolver.Device())
	}
	assert.NotNil(t, resolver.Host())
}

func TestNew_WebGPURequired(t *testing.T) {
	if webgpu.IsAvailable() {
		t.Skip("webgpu adapter present")
	}
	cfg := ops.DefaultConfig()
	cfg.Device = "webgpu"

	_, _, err := ops.New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, ops.ErrDeviceUnavailable)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := ops.DefaultConfig()
	cfg.Device = "tpu"

	_, _, err := ops.New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
