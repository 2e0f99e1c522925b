// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated operations.
//
// Kernels are WGSL compute shaders dispatched through a zero-CGO WebGPU
// binding. Results stay in device memory until read on the host. The backend
// is built on Windows; elsewhere New reports ops.ErrDeviceUnavailable.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//
//	x, _ := gpu.Asarray([]float32{-1, 2}, tensor.KeepDType)
//	y, _ := gpu.Relu(x)
package webgpu

import (
	internalwebgpu "github.com/born-ml/kernels/internal/backend/webgpu"
	"github.com/born-ml/kernels/ops"
)

// Backend is the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Config configures command batching, the init seed, the host fallback and logging.
type Config = internalwebgpu.Config

// Adapter describes a GPU adapter.
type Adapter = internalwebgpu.Adapter

// Compile-time check that Backend implements ops.Ops.
var _ ops.Ops = (*Backend)(nil)

// New creates a WebGPU backend with the default configuration.
// Call Release() when done to free GPU resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// NewWithConfig creates a WebGPU backend from cfg.
func NewWithConfig(cfg Config) (*Backend, error) {
	return internalwebgpu.NewWithConfig(cfg)
}

// DefaultConfig returns the default device configuration.
func DefaultConfig() Config {
	return internalwebgpu.DefaultConfig()
}

// IsAvailable checks if a WebGPU adapter can be acquired.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    resolver = ops.NewResolver(host, gpu, logger)
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}

// ListAdapters returns the adapters visible to WebGPU.
func ListAdapters() ([]Adapter, error) {
	return internalwebgpu.ListAdapters()
}
