//go:build !windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/kernels/internal/ops"
)

func TestStub_Unavailable(t *testing.T) {
	assert.False(t, IsAvailable())

	backend, err := New()
	assert.Nil(t, backend)
	assert.ErrorIs(t, err, ops.ErrDeviceUnavailable)

	adapters, err := ListAdapters()
	assert.Empty(t, adapters)
	assert.ErrorIs(t, err, ops.ErrDeviceUnavailable)
}

func TestAdapter_String(t *testing.T) {
	assert.Equal(t, "RTX (NVIDIA)", Adapter{Name: "RTX", Vendor: "NVIDIA"}.String())
	assert.Equal(t, "llvmpipe", Adapter{Name: "llvmpipe"}.String())
}
