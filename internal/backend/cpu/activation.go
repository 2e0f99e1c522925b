package cpu

import (
	"math"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Relu returns max(X, 0) in a new tensor.
func (cpu *CPUBackend) Relu(X *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("relu", X); err != nil {
		return nil, err
	}
	result := cpu.alloc("relu", X.Shape(), X.DType())
	cpu.relu(result, X.Contiguous())
	return result, nil
}

// ReluInplace overwrites X with max(X, 0) and returns it.
func (cpu *CPUBackend) ReluInplace(X *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("relu", X); err != nil {
		return nil, err
	}
	if err := inplace("relu", X); err != nil {
		return nil, err
	}
	cpu.relu(X, X)
	return X, nil
}

func (cpu *CPUBackend) relu(dst, src *tensor.RawTensor) {
	switch src.DType() {
	case tensor.Float32:
		reluKernel(dst.AsFloat32(), src.AsFloat32(), cpu.parallel)
	case tensor.Float64:
		reluKernel(dst.AsFloat64(), src.AsFloat64(), cpu.parallel)
	}
}

// BackpropRelu returns dY masked by Y > 0, where Y is the forward output.
func (cpu *CPUBackend) BackpropRelu(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_relu", dY, Y); err != nil {
		return nil, err
	}
	result := cpu.alloc("backprop_relu", dY.Shape(), dY.DType())
	cpu.backpropRelu(result, dY.Contiguous(), Y.Contiguous())
	return result, nil
}

// BackpropReluInplace masks dY by Y > 0 in place and returns it.
func (cpu *CPUBackend) BackpropReluInplace(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_relu", dY, Y); err != nil {
		return nil, err
	}
	if err := inplace("backprop_relu", dY); err != nil {
		return nil, err
	}
	cpu.backpropRelu(dY, dY, Y.Contiguous())
	return dY, nil
}

func (cpu *CPUBackend) backpropRelu(dst, dY, Y *tensor.RawTensor) {
	switch dY.DType() {
	case tensor.Float32:
		backpropReluKernel(dst.AsFloat32(), dY.AsFloat32(), Y.AsFloat32(), cpu.parallel)
	case tensor.Float64:
		backpropReluKernel(dst.AsFloat64(), dY.AsFloat64(), Y.AsFloat64(), cpu.parallel)
	}
}

// Mish computes x * tanh(softplus(x)), passing x through unchanged once
// x >= threshold. The result is written to out when it is non-nil.
func (cpu *CPUBackend) Mish(X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("mish", X); err != nil {
		return nil, err
	}
	result, err := cpu.output("mish", out, X.Shape(), X.DType())
	if err != nil {
		return nil, err
	}

	src := X.Contiguous()
	switch X.DType() {
	case tensor.Float32:
		mishKernel(result.AsFloat32(), src.AsFloat32(), float64(threshold), cpu.parallel)
	case tensor.Float64:
		mishKernel(result.AsFloat64(), src.AsFloat64(), float64(threshold), cpu.parallel)
	}
	return result, nil
}

// BackpropMish computes the mish gradient with respect to the forward input X.
func (cpu *CPUBackend) BackpropMish(dY, X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_mish", dY, X); err != nil {
		return nil, err
	}
	result, err := cpu.output("backprop_mish", out, X.Shape(), X.DType())
	if err != nil {
		return nil, err
	}

	grad, src := dY.Contiguous(), X.Contiguous()
	switch X.DType() {
	case tensor.Float32:
		backpropMishKernel(result.AsFloat32(), grad.AsFloat32(), src.AsFloat32(), float64(threshold), cpu.parallel)
	case tensor.Float64:
		backpropMishKernel(result.AsFloat64(), grad.AsFloat64(), src.AsFloat64(), float64(threshold), cpu.parallel)
	}
	return result, nil
}

// checkGradPair validates a gradient against the forward tensor it belongs to.
func checkGradPair(op string, dY, X *tensor.RawTensor) error {
	if err := ops.CheckFloat(op, dY, X); err != nil {
		return err
	}
	return ops.CheckSameShape(op, dY, X)
}

func reluKernel[T tensor.Float](dst, src []T, cfg parallel.Config) {
	parallel.ForRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			if src[i] > 0 {
				dst[i] = src[i]
			} else {
				dst[i] = 0
			}
		}
	}, cfg)
}

func backpropReluKernel[T tensor.Float](dst, dY, Y []T, cfg parallel.Config) {
	parallel.ForRange(len(dY), func(start, end int) {
		for i := start; i < end; i++ {
			if Y[i] > 0 {
				dst[i] = dY[i]
			} else {
				dst[i] = 0
			}
		}
	}, cfg)
}

func mishKernel[T tensor.Float](dst, src []T, threshold float64, cfg parallel.Config) {
	parallel.ForRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(mish(float64(src[i]), threshold))
		}
	}, cfg)
}

func backpropMishKernel[T tensor.Float](dst, dY, X []T, threshold float64, cfg parallel.Config) {
	parallel.ForRange(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(float64(dY[i]) * mishGrad(float64(X[i]), threshold))
		}
	}, cfg)
}

func mish(x, threshold float64) float64 {
	if x >= threshold {
		return x
	}
	return x * math.Tanh(math.Log1p(math.Exp(x)))
}

// mishGrad is d mish(x) / dx in the closed form
// e^x * omega / delta^2.
func mishGrad(x, threshold float64) float64 {
	if x >= threshold {
		return 1
	}
	exp := math.Exp(x)
	exp2 := exp * exp
	exp3 := exp2 * exp
	omega := 4*(x+1) + 4*exp2 + exp3 + exp*(4*x+6)
	delta := 2*exp + exp2 + 2
	return exp * omega / (delta * delta)
}
