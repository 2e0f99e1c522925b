//go:build !windows

// Package webgpu implements the device backend on WebGPU compute shaders.
//
// WebGPU support is only built on Windows. On other platforms every
// constructor fails with ops.ErrDeviceUnavailable and callers fall back to
// the host backend.
package webgpu

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/ops"
)

// Config configures a WebGPU backend.
type Config struct {
	MaxBatchSize int
	Seed         uint64
	Host         ops.Ops
	Logger       zerolog.Logger
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 64,
		Logger:       zerolog.Nop(),
	}
}

// Backend is never constructed in builds without WebGPU.
type Backend struct {
	ops.Ops
}

var errNotBuilt = fmt.Errorf("webgpu: %w: not built for this platform", ops.ErrDeviceUnavailable)

// New always fails in builds without WebGPU.
func New() (*Backend, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig always fails in builds without WebGPU.
func NewWithConfig(Config) (*Backend, error) {
	return nil, errNotBuilt
}

// IsAvailable reports false.
func IsAvailable() bool {
	return false
}

// ListAdapters reports no adapters.
func ListAdapters() ([]Adapter, error) {
	return nil, errNotBuilt
}

// Release is a no-op.
func (b *Backend) Release() {}

// FlushCommands is a no-op.
func (b *Backend) FlushCommands() {}
