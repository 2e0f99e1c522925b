package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Adam applies one fused Adam update to weights, mom1 and mom2 in place and
// zeroes the gradient:
//
//	m += (1-b1)(g-m); v += (1-b2)(g*g-v); w -= lr*m/(sqrt(v)+eps); g = 0
func (cpu *CPUBackend) Adam(weights, gradient, mom1, mom2 *tensor.RawTensor, cfg ops.AdamConfig) error {
	if err := ops.CheckAdam(weights, gradient, mom1, mom2); err != nil {
		return err
	}
	for _, t := range []*tensor.RawTensor{weights, gradient, mom1, mom2} {
		if err := inplace("adam", t); err != nil {
			return err
		}
	}

	switch weights.DType() {
	case tensor.Float32:
		adamKernel(weights.AsFloat32(), gradient.AsFloat32(), mom1.AsFloat32(), mom2.AsFloat32(), cfg, cpu.parallel)
	case tensor.Float64:
		adamKernel(weights.AsFloat64(), gradient.AsFloat64(), mom1.AsFloat64(), mom2.AsFloat64(), cfg, cpu.parallel)
	}
	return nil
}

// ClipGradient rescales gradient in place so that its L2 norm equals
// threshold whenever the norm is at least threshold.
func (cpu *CPUBackend) ClipGradient(gradient *tensor.RawTensor, threshold float32) error {
	if err := ops.CheckFloat("clip_gradient", gradient); err != nil {
		return err
	}
	if threshold < 0 {
		return fmt.Errorf("clip_gradient: %w: threshold %g", ops.ErrInvalidArgument, threshold)
	}
	if err := inplace("clip_gradient", gradient); err != nil {
		return err
	}

	switch gradient.DType() {
	case tensor.Float32:
		clipKernel(gradient.AsFloat32(), float64(threshold))
	case tensor.Float64:
		clipKernel(gradient.AsFloat64(), float64(threshold))
	}
	return nil
}

func adamKernel[T tensor.Float](w, g, m, v []T, cfg ops.AdamConfig, par parallel.Config) {
	oneMinusB1 := T(1 - cfg.Beta1)
	oneMinusB2 := T(1 - cfg.Beta2)
	lr, eps := T(cfg.LearnRate), T(cfg.Eps)

	parallel.ForRange(len(w), func(start, end int) {
		for i := start; i < end; i++ {
			grad := g[i]
			m[i] += oneMinusB1 * (grad - m[i])
			v[i] += oneMinusB2 * (grad*grad - v[i])
			w[i] -= lr * m[i] / (T(math.Sqrt(float64(v[i]))) + eps)
			g[i] = 0
		}
	}, par)
}

// l2Norm accumulates in float64 regardless of the element type.
func l2Norm[T tensor.Float](g []T) float64 {
	var sum float64
	for _, x := range g {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func clipKernel[T tensor.Float](g []T, threshold float64) {
	norm := l2Norm(g)
	if norm == 0 || norm < threshold {
		return
	}
	scale := T(threshold / norm)
	for i := range g {
		g[i] *= scale
	}
}
