package cpu

import (
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Seq2Col concatenates each row of an (M, N) sequence with its nW preceding
// and nW following rows, giving (M, N*(2*nW+1)). Rows past either end of the
// sequence contribute zeros.
func (cpu *CPUBackend) Seq2Col(seq *tensor.RawTensor, nW int) (*tensor.RawTensor, error) {
	rows, width, err := ops.Seq2ColDims("seq2col", seq, nW)
	if err != nil {
		return nil, err
	}
	window := 2*nW + 1
	result := cpu.alloc("seq2col", tensor.Shape{rows, width * window}, seq.DType())

	src := seq.Contiguous()
	switch seq.DType() {
	case tensor.Float32:
		seq2col(result.AsFloat32(), src.AsFloat32(), rows, width, nW, cpu.parallel)
	case tensor.Float64:
		seq2col(result.AsFloat64(), src.AsFloat64(), rows, width, nW, cpu.parallel)
	}
	return result, nil
}

// BackpropSeq2Col is the adjoint of Seq2Col: every input row accumulates the
// gradient of each window slot it was copied into.
func (cpu *CPUBackend) BackpropSeq2Col(dY *tensor.RawTensor, nW int) (*tensor.RawTensor, error) {
	rows, width, err := ops.BackpropSeq2ColDims(dY, nW)
	if err != nil {
		return nil, err
	}
	result := cpu.alloc("backprop_seq2col", tensor.Shape{rows, width}, dY.DType())

	src := dY.Contiguous()
	switch dY.DType() {
	case tensor.Float32:
		backpropSeq2col(result.AsFloat32(), src.AsFloat32(), rows, width, nW, cpu.parallel)
	case tensor.Float64:
		backpropSeq2col(result.AsFloat64(), src.AsFloat64(), rows, width, nW, cpu.parallel)
	}
	return result, nil
}

func seq2col[T tensor.Float](dst, src []T, rows, width, nW int, cfg parallel.Config) {
	window := 2*nW + 1
	parallel.ForRows(rows, width*window, func(i int) {
		out := dst[i*width*window : (i+1)*width*window]
		for w := -nW; w <= nW; w++ {
			j := i + w
			if j < 0 || j >= rows {
				continue // already zero
			}
			slot := (w + nW) * width
			copy(out[slot:slot+width], src[j*width:(j+1)*width])
		}
	}, cfg)
}

func backpropSeq2col[T tensor.Float](dst, dY []T, rows, width, nW int, cfg parallel.Config) {
	window := 2*nW + 1
	parallel.ForRows(rows, width*window, func(j int) {
		out := dst[j*width : (j+1)*width]
		// Row j sits in slot w of the window centred on row j-w.
		for w := -nW; w <= nW; w++ {
			i := j - w
			if i < 0 || i >= rows {
				continue
			}
			grad := dY[i*width*window+(w+nW)*width:]
			for c := range out {
				out[c] += grad[c]
			}
		}
	}, cfg)
}
