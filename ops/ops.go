// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops defines the operation contract shared by the host and device
// backends and selects backends for a configuration.
//
// # Basic Usage
//
//	cfg := ops.DefaultConfig()
//	resolver, release, err := ops.New(cfg, zerolog.Nop())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer release()
//
//	backend := resolver.Module(x)  // the backend that owns x
//	y, err := backend.Relu(x)
//
// # Errors
//
// Validation failures wrap the sentinel errors below and are matched with
// errors.Is.
package ops

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/backend/webgpu"
	"github.com/born-ml/kernels/internal/config"
	"github.com/born-ml/kernels/internal/ops"
)

// Ops is the numeric operation contract.
type Ops = ops.Ops

// Resolver routes calls to the backend owning their arguments.
type Resolver = ops.Resolver

// AdamConfig holds the hyperparameters of one Adam step.
type AdamConfig = ops.AdamConfig

// Config is the backend configuration, loadable from YAML.
type Config = config.Config

// DefaultMishThreshold is the input above which mish is the identity.
const DefaultMishThreshold = ops.DefaultMishThreshold

// Error taxonomy.
var (
	ErrShapeMismatch     = ops.ErrShapeMismatch
	ErrDTypeMismatch     = ops.ErrDTypeMismatch
	ErrUnsupportedDType  = ops.ErrUnsupportedDType
	ErrUnsupportedBuffer = ops.ErrUnsupportedBuffer
	ErrInvalidStride     = ops.ErrInvalidStride
	ErrLengthsOverrun    = ops.ErrLengthsOverrun
	ErrNegativeLength    = ops.ErrNegativeLength
	ErrEmptySegment      = ops.ErrEmptySegment
	ErrIndexOutOfRange   = ops.ErrIndexOutOfRange
	ErrInvalidArgument   = ops.ErrInvalidArgument
	ErrDeviceUnavailable = ops.ErrDeviceUnavailable
)

// NewResolver creates a resolver over a host backend and an optional device
// backend (nil when no device is available).
func NewResolver(host, device Ops, logger zerolog.Logger) *Resolver {
	return ops.NewResolver(host, device, logger)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads a YAML configuration over the defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// New builds a resolver for cfg. Device "cpu" uses the host backend only,
// "webgpu" requires a device, and "auto" uses a device when one is available.
// release frees device resources and must be called once the resolver is no
// longer used.
func New(cfg *Config, logger zerolog.Logger) (resolver *Resolver, release func(), err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	host := cpu.NewWithConfig(cfg.HostConfig(logger))
	if cfg.Device == config.DeviceCPU {
		return ops.NewResolver(host, nil, logger), func() {}, nil
	}

	gpu, err := webgpu.NewWithConfig(cfg.DeviceConfig(host, logger))
	if err != nil {
		if cfg.Device == config.DeviceWebGPU || !errors.Is(err, ops.ErrDeviceUnavailable) {
			return nil, nil, err
		}
		logger.Debug().Err(err).Msg("no webgpu device, using cpu")
		return ops.NewResolver(host, nil, logger), func() {}, nil
	}
	return ops.NewResolver(host, gpu, logger), gpu.Release, nil
}
