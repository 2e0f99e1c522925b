package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// segments validates a row-segmented reduction over X.
func segments(op string, X, lengths *tensor.RawTensor) (starts []int, width int, err error) {
	if err := ops.CheckRank(op, X, 2); err != nil {
		return nil, 0, err
	}
	if err := ops.CheckFloat(op, X); err != nil {
		return nil, 0, err
	}
	starts, _, err = ops.Segments(lengths, X.Shape()[0])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return starts, X.Shape()[1], nil
}

// gradSegments validates the per-segment gradient of a pooling backprop and
// returns the segment starts, the number of rows they cover and the width.
func gradSegments(op string, d, lengths *tensor.RawTensor) (starts []int, total, width int, err error) {
	if err := ops.CheckRank(op, d, 2); err != nil {
		return nil, 0, 0, err
	}
	if err := ops.CheckFloat(op, d); err != nil {
		return nil, 0, 0, err
	}
	starts, total, err = ops.Segments(lengths, -1)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if d.Shape()[0] != len(starts) {
		return nil, 0, 0, fmt.Errorf("%s: %w: %d gradient rows for %d segments", op, ops.ErrShapeMismatch, d.Shape()[0], len(starts))
	}
	return starts, total, d.Shape()[1], nil
}

// SumPool sums the rows of each segment: (sum(lengths)<=M, N) -> (B, N).
func (cpu *CPUBackend) SumPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.pool("sum_pool", X, lengths, false)
}

// MeanPool averages the rows of each segment. An empty segment averages to 0.
func (cpu *CPUBackend) MeanPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.pool("mean_pool", X, lengths, true)
}

func (cpu *CPUBackend) pool(op string, X, lengths *tensor.RawTensor, mean bool) (*tensor.RawTensor, error) {
	starts, width, err := segments(op, X, lengths)
	if err != nil {
		return nil, err
	}
	lens := lengths.Contiguous().AsInt32()
	result := cpu.alloc(op, tensor.Shape{len(starts), width}, X.DType())

	src := X.Contiguous()
	switch X.DType() {
	case tensor.Float32:
		sumPool(result.AsFloat32(), src.AsFloat32(), starts, lens, width, mean, cpu.parallel)
	case tensor.Float64:
		sumPool(result.AsFloat64(), src.AsFloat64(), starts, lens, width, mean, cpu.parallel)
	}
	return result, nil
}

// MaxPool takes the per-column maximum of each segment. which holds, per
// column, the offset of the maximum row within its segment (first wins).
// Empty segments have no maximum and are rejected.
func (cpu *CPUBackend) MaxPool(X, lengths *tensor.RawTensor) (maxes, which *tensor.RawTensor, err error) {
	starts, width, err := segments("max_pool", X, lengths)
	if err != nil {
		return nil, nil, err
	}
	lens := lengths.Contiguous().AsInt32()
	for b, n := range lens {
		if n == 0 {
			return nil, nil, fmt.Errorf("max_pool: segment %d: %w", b, ops.ErrEmptySegment)
		}
	}

	maxes = cpu.alloc("max_pool", tensor.Shape{len(starts), width}, X.DType())
	which = cpu.alloc("max_pool", tensor.Shape{len(starts), width}, tensor.Int32)

	src := X.Contiguous()
	switch X.DType() {
	case tensor.Float32:
		maxPool(maxes.AsFloat32(), which.AsInt32(), src.AsFloat32(), starts, lens, width, cpu.parallel)
	case tensor.Float64:
		maxPool(maxes.AsFloat64(), which.AsInt32(), src.AsFloat64(), starts, lens, width, cpu.parallel)
	}
	return maxes, which, nil
}

// BackpropSumPool broadcasts each segment gradient to every row of the segment.
func (cpu *CPUBackend) BackpropSumPool(dSums, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.backpropPool("backprop_sum_pool", dSums, lengths, false)
}

// BackpropMeanPool broadcasts each segment gradient divided by the segment length.
func (cpu *CPUBackend) BackpropMeanPool(dMeans, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.backpropPool("backprop_mean_pool", dMeans, lengths, true)
}

func (cpu *CPUBackend) backpropPool(op string, d, lengths *tensor.RawTensor, mean bool) (*tensor.RawTensor, error) {
	starts, total, width, err := gradSegments(op, d, lengths)
	if err != nil {
		return nil, err
	}
	lens := lengths.Contiguous().AsInt32()
	result := cpu.alloc(op, tensor.Shape{total, width}, d.DType())

	src := d.Contiguous()
	switch d.DType() {
	case tensor.Float32:
		backpropSumPool(result.AsFloat32(), src.AsFloat32(), starts, lens, width, mean, cpu.parallel)
	case tensor.Float64:
		backpropSumPool(result.AsFloat64(), src.AsFloat64(), starts, lens, width, mean, cpu.parallel)
	}
	return result, nil
}

// BackpropMaxPool routes each segment gradient to the row that held the maximum.
func (cpu *CPUBackend) BackpropMaxPool(dMaxes, which, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	starts, total, width, err := gradSegments("backprop_max_pool", dMaxes, lengths)
	if err != nil {
		return nil, err
	}
	if err := ops.CheckWhich("backprop_max_pool", dMaxes, which); err != nil {
		return nil, err
	}
	lens := lengths.Contiguous().AsInt32()
	idx := which.Contiguous().AsInt32()
	for i, w := range idx {
		b := i / width
		if w < 0 || w >= lens[b] {
			return nil, fmt.Errorf("backprop_max_pool: which[%d] = %d in segment of %d rows: %w", i, w, lens[b], ops.ErrIndexOutOfRange)
		}
	}
	result := cpu.alloc("backprop_max_pool", tensor.Shape{total, width}, dMaxes.DType())

	src := dMaxes.Contiguous()
	switch dMaxes.DType() {
	case tensor.Float32:
		backpropMaxPool(result.AsFloat32(), src.AsFloat32(), idx, starts, width)
	case tensor.Float64:
		backpropMaxPool(result.AsFloat64(), src.AsFloat64(), idx, starts, width)
	}
	return result, nil
}

func sumPool[T tensor.Float](dst, src []T, starts []int, lens []int32, width int, mean bool, cfg parallel.Config) {
	parallel.ForRows(len(starts), width, func(b int) {
		out := dst[b*width : (b+1)*width]
		n := int(lens[b])
		for r := starts[b]; r < starts[b]+n; r++ {
			row := src[r*width : (r+1)*width]
			for c := range out {
				out[c] += row[c]
			}
		}
		if mean && n > 0 {
			scale := 1 / T(n)
			for c := range out {
				out[c] *= scale
			}
		}
	}, cfg)
}

func maxPool[T tensor.Float](dst []T, which []int32, src []T, starts []int, lens []int32, width int, cfg parallel.Config) {
	parallel.ForRows(len(starts), width, func(b int) {
		out := dst[b*width : (b+1)*width]
		arg := which[b*width : (b+1)*width]
		start := starts[b]
		copy(out, src[start*width:(start+1)*width])
		for off := int32(1); off < lens[b]; off++ {
			row := src[(start+int(off))*width:]
			for c := range out {
				if row[c] > out[c] {
					out[c] = row[c]
					arg[c] = off
				}
			}
		}
	}, cfg)
}

func backpropSumPool[T tensor.Float](dst, d []T, starts []int, lens []int32, width int, mean bool, cfg parallel.Config) {
	parallel.ForRows(len(starts), width, func(b int) {
		grad := d[b*width : (b+1)*width]
		n := int(lens[b])
		scale := T(1)
		if mean && n > 0 {
			scale = 1 / T(n)
		}
		for r := starts[b]; r < starts[b]+n; r++ {
			row := dst[r*width : (r+1)*width]
			for c := range row {
				row[c] = grad[c] * scale
			}
		}
	}, cfg)
}

func backpropMaxPool[T tensor.Float](dst, d []T, which []int32, starts []int, width int) {
	for b, start := range starts {
		for c := 0; c < width; c++ {
			i := b*width + c
			dst[(start+int(which[i]))*width+c] = d[i]
		}
	}
}
