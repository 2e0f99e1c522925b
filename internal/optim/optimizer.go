// Package optim drives fused optimizer steps over named parameters.
//
// Optimizers keep per-parameter state on the backend that owns the
// parameter, resolved through an ops.Resolver, so host and device
// parameters can be mixed in one model.
//
// Example usage:
//
//	optimizer := optim.NewAdam(resolver, optim.AdamConfig{LR: 0.001}, logger)
//
//	for step := range steps {
//	    params := model.Parameters() // weights with gradients filled in
//	    if err := optimizer.Step(params); err != nil {
//	        return err
//	    }
//	}
package optim

import "github.com/born-ml/kernels/internal/tensor"

// Param is a named weight tensor and its gradient.
// Optimizer state is keyed by Name, so names must be stable across steps.
type Param struct {
	Name    string
	Weights *tensor.RawTensor
	Grad    *tensor.RawTensor
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step updates every parameter in place from its gradient and zeroes the
	// gradient. Parameters with a nil gradient are skipped.
	Step(params []Param) error

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR sets the learning rate (for learning rate scheduling).
	SetLR(lr float64)
}
