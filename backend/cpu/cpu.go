// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go host backend.
//
// Every operation runs on host memory, fanning rows out over worker
// goroutines. Matrix products use gonum BLAS.
//
// Example:
//
//	import (
//	    "github.com/born-ml/kernels/backend/cpu"
//	    "github.com/born-ml/kernels/tensor"
//	)
//
//	func main() {
//	    host := cpu.New()
//	    x := tensor.MustFromSlice([]float32{-1, 2}, tensor.Shape{2})
//	    y, _ := host.Relu(x)  // [0 2]
//	}
package cpu

import (
	internalcpu "github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/ops"
)

// Backend is the host backend implementation.
type Backend = internalcpu.CPUBackend

// Config configures worker fan-out, the init seed and logging.
type Config = internalcpu.Config

// Compile-time check that Backend implements ops.Ops.
var _ ops.Ops = (*Backend)(nil)

// New creates a host backend using every CPU.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a host backend from cfg.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return internalcpu.DefaultConfig()
}
