package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Maxout reduces (B, O, P) over its pieces axis, returning the (B, O) maxima
// and the index of the winning piece (first wins on ties).
func (cpu *CPUBackend) Maxout(X *tensor.RawTensor) (best, which *tensor.RawTensor, err error) {
	if err := ops.CheckRank("maxout", X, 3); err != nil {
		return nil, nil, err
	}
	if err := ops.CheckFloat("maxout", X); err != nil {
		return nil, nil, err
	}
	shape := X.Shape()
	pieces := shape[2]
	if pieces == 0 {
		return nil, nil, fmt.Errorf("maxout: %w: zero pieces", ops.ErrInvalidArgument)
	}

	out := tensor.Shape{shape[0], shape[1]}
	best = cpu.alloc("maxout", out, X.DType())
	which = cpu.alloc("maxout", out, tensor.Int32)

	src := X.Contiguous()
	switch X.DType() {
	case tensor.Float32:
		maxoutKernel(best.AsFloat32(), which.AsInt32(), src.AsFloat32(), pieces, cpu.parallel)
	case tensor.Float64:
		maxoutKernel(best.AsFloat64(), which.AsInt32(), src.AsFloat64(), pieces, cpu.parallel)
	}
	return best, which, nil
}

// BackpropMaxout scatters each (B, O) gradient to the winning piece of a
// (B, O, pieces) result.
func (cpu *CPUBackend) BackpropMaxout(dY, which *tensor.RawTensor, pieces int) (*tensor.RawTensor, error) {
	if pieces <= 0 {
		return nil, fmt.Errorf("backprop_maxout: %w: pieces = %d", ops.ErrInvalidArgument, pieces)
	}
	if err := ops.CheckRank("backprop_maxout", dY, 2); err != nil {
		return nil, err
	}
	if err := ops.CheckFloat("backprop_maxout", dY); err != nil {
		return nil, err
	}
	if err := ops.CheckWhich("backprop_maxout", dY, which); err != nil {
		return nil, err
	}
	idx := which.Contiguous().AsInt32()
	for i, p := range idx {
		if p < 0 || int(p) >= pieces {
			return nil, fmt.Errorf("backprop_maxout: which[%d] = %d with %d pieces: %w", i, p, pieces, ops.ErrIndexOutOfRange)
		}
	}

	shape := dY.Shape()
	result := cpu.alloc("backprop_maxout", tensor.Shape{shape[0], shape[1], pieces}, dY.DType())

	src := dY.Contiguous()
	switch dY.DType() {
	case tensor.Float32:
		backpropMaxoutKernel(result.AsFloat32(), src.AsFloat32(), idx, pieces)
	case tensor.Float64:
		backpropMaxoutKernel(result.AsFloat64(), src.AsFloat64(), idx, pieces)
	}
	return result, nil
}

func maxoutKernel[T tensor.Float](best []T, which []int32, src []T, pieces int, cfg parallel.Config) {
	parallel.ForRows(len(best), pieces, func(i int) {
		row := src[i*pieces : (i+1)*pieces]
		arg := 0
		for p := 1; p < pieces; p++ {
			if row[p] > row[arg] {
				arg = p
			}
		}
		best[i] = row[arg]
		which[i] = int32(arg) //nolint:gosec // G115: arg < pieces, validated as int32 shape
	}, cfg)
}

func backpropMaxoutKernel[T tensor.Float](dst, dY []T, which []int32, pieces int) {
	for i, g := range dY {
		dst[i*pieces+int(which[i])] = g
	}
}
