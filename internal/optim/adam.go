package optim

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// Adam implements the Adam optimizer on top of the fused ops.Ops step.
//
// Bias correction is folded into the step size:
//
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//
// and each parameter is then updated by Ops.Adam with lr_t, optionally after
// its gradient is clipped to GradClip by Ops.ClipGradient.
type Adam struct {
	resolver *ops.Resolver
	lr       float64
	beta1    float64
	beta2    float64
	eps      float64
	modRate  float64
	clip     float32
	t        int // Timestep for bias correction
	m        map[string]*tensor.RawTensor
	v        map[string]*tensor.RawTensor
	logger   zerolog.Logger
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR       float64    // Learning rate (default: 0.001)
	Betas    [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps      float64    // Term for numerical stability (default: 1e-8)
	ModRate  float64    // Passed through to Ops.Adam; does not change the update
	GradClip float32    // L2 norm gradients are clipped to; 0 disables clipping
}

// NewAdam creates a new Adam optimizer. Zero hyper-parameters take their defaults.
func NewAdam(resolver *ops.Resolver, config AdamConfig, logger zerolog.Logger) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		resolver: resolver,
		lr:       config.LR,
		beta1:    config.Betas[0],
		beta2:    config.Betas[1],
		eps:      config.Eps,
		modRate:  config.ModRate,
		clip:     config.GradClip,
		m:        make(map[string]*tensor.RawTensor),
		v:        make(map[string]*tensor.RawTensor),
		logger:   logger.With().Str("component", "adam").Logger(),
	}
}

// Step performs a single optimization step.
func (a *Adam) Step(params []Param) error {
	a.t++

	fix1 := 1 - math.Pow(a.beta1, float64(a.t))
	fix2 := 1 - math.Pow(a.beta2, float64(a.t))
	cfg := ops.AdamConfig{
		Beta1:     a.beta1,
		Beta2:     a.beta2,
		Eps:       a.eps,
		LearnRate: a.lr * math.Sqrt(fix2) / fix1,
		ModRate:   a.modRate,
	}

	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		if err := a.update(p, cfg); err != nil {
			return fmt.Errorf("adam: param %q: %w", p.Name, err)
		}
	}
	a.logger.Debug().Int("step", a.t).Int("params", len(params)).Float64("lr", cfg.LearnRate).Msg("adam step")
	return nil
}

func (a *Adam) update(p Param, cfg ops.AdamConfig) error {
	backend := a.resolver.Module(p.Weights)

	if a.clip > 0 {
		if err := backend.ClipGradient(p.Grad, a.clip); err != nil {
			return err
		}
	}

	m, err := a.moment(a.m, backend, p)
	if err != nil {
		return err
	}
	v, err := a.moment(a.v, backend, p)
	if err != nil {
		return err
	}
	return backend.Adam(p.Weights, p.Grad, m, v, cfg)
}

// moment returns the zero-initialized state buffer of p.
func (a *Adam) moment(state map[string]*tensor.RawTensor, backend ops.Ops, p Param) (*tensor.RawTensor, error) {
	if t, ok := state[p.Name]; ok {
		if !t.Shape().Equal(p.Weights.Shape()) {
			return nil, fmt.Errorf("%w: state %v, weights %v", ops.ErrShapeMismatch, t.Shape(), p.Weights.Shape())
		}
		return t, nil
	}
	t, err := backend.Alloc(p.Weights.Shape(), p.Weights.DType())
	if err != nil {
		return nil, err
	}
	state[p.Name] = t
	return t, nil
}

// State returns the first and second moments of a parameter, or nils
// before its first step.
func (a *Adam) State(name string) (m, v *tensor.RawTensor) {
	return a.m[name], a.v[name]
}

// Steps returns the number of steps taken.
func (a *Adam) Steps() int {
	return a.t
}

// Reset drops all moments and restarts bias correction.
func (a *Adam) Reset() {
	for name, t := range a.m {
		t.Release()
		delete(a.m, name)
	}
	for name, t := range a.v {
		t.Release()
		delete(a.v, name)
	}
	a.t = 0
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR sets the learning rate (for learning rate scheduling).
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// Compile-time check.
var _ Optimizer = (*Adam)(nil)
