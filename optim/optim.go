// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim applies optimizer steps to named parameters through ops.Ops.
//
// Example:
//
//	resolver := ops.NewResolver(cpu.New(), nil, zerolog.Nop())
//	adam := optim.NewAdam(resolver, optim.AdamConfig{LR: 0.01}, zerolog.Nop())
//	err := adam.Step([]optim.Param{{Name: "W", Weights: w, Grad: g}})
package optim

import (
	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/optim"
	"github.com/born-ml/kernels/ops"
)

// Optimizer is the common optimizer interface.
type Optimizer = optim.Optimizer

// Param is a named weight tensor with its gradient.
type Param = optim.Param

// Adam (Adaptive Moment Estimation)

// Adam keeps first and second moments per parameter name.
type Adam = optim.Adam

// AdamConfig contains configuration for the Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer dispatching through resolver.
// Zero fields of config take the usual defaults (lr 0.001, betas 0.9/0.999, eps 1e-8).
func NewAdam(resolver *ops.Resolver, config AdamConfig, logger zerolog.Logger) *Adam {
	return optim.NewAdam(resolver, config, logger)
}
