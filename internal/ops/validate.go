package ops

import (
	"fmt"

	"github.com/born-ml/kernels/internal/tensor"
)

// Segments validates a lengths vector against a batch of rows and returns the
// starting row of every segment and the number of rows the segments cover.
func Segments(lengths *tensor.RawTensor, rows int) (starts []int, total int, err error) {
	if lengths.DType() != tensor.Int32 {
		return nil, 0, fmt.Errorf("lengths: %w: %s, want int32", ErrUnsupportedDType, lengths.DType())
	}
	if len(lengths.Shape()) != 1 {
		return nil, 0, fmt.Errorf("lengths: %w: rank %d, want 1", ErrShapeMismatch, len(lengths.Shape()))
	}

	values := lengths.Contiguous().AsInt32()
	starts = make([]int, len(values))
	for i, n := range values {
		if n < 0 {
			return nil, 0, fmt.Errorf("lengths[%d] = %d: %w", i, n, ErrNegativeLength)
		}
		starts[i] = total
		total += int(n)
	}
	if rows >= 0 && total > rows {
		return nil, 0, fmt.Errorf("sum(lengths) = %d > %d rows: %w", total, rows, ErrLengthsOverrun)
	}
	return starts, total, nil
}

// CheckFloat reports ErrUnsupportedDType unless every tensor is float32 or
// float64, and ErrDTypeMismatch unless they all share one dtype.
func CheckFloat(op string, ts ...*tensor.RawTensor) error {
	for _, t := range ts {
		if !t.DType().IsFloat() {
			return fmt.Errorf("%s: %w: %s", op, ErrUnsupportedDType, t.DType())
		}
	}
	return CheckSameDType(op, ts...)
}

// CheckSameDType reports ErrDTypeMismatch unless all tensors share one dtype.
func CheckSameDType(op string, ts ...*tensor.RawTensor) error {
	for _, t := range ts[1:] {
		if t.DType() != ts[0].DType() {
			return fmt.Errorf("%s: %w: %s vs %s", op, ErrDTypeMismatch, ts[0].DType(), t.DType())
		}
	}
	return nil
}

// CheckSameShape reports ErrShapeMismatch unless all tensors share one shape.
func CheckSameShape(op string, ts ...*tensor.RawTensor) error {
	for _, t := range ts[1:] {
		if !t.Shape().Equal(ts[0].Shape()) {
			return fmt.Errorf("%s: %w: %v vs %v", op, ErrShapeMismatch, ts[0].Shape(), t.Shape())
		}
	}
	return nil
}

// CheckRank reports ErrShapeMismatch unless t has the given rank.
func CheckRank(op string, t *tensor.RawTensor, rank int) error {
	if len(t.Shape()) != rank {
		return fmt.Errorf("%s: %w: rank %d, want %d", op, ErrShapeMismatch, len(t.Shape()), rank)
	}
	return nil
}

// CheckOut validates a caller-provided output buffer. A nil out is valid.
func CheckOut(op string, out *tensor.RawTensor, shape tensor.Shape, dtype tensor.DataType) error {
	if out == nil {
		return nil
	}
	if !out.Shape().Equal(shape) {
		return fmt.Errorf("%s: out %w: %v, want %v", op, ErrShapeMismatch, out.Shape(), shape)
	}
	if out.DType() != dtype {
		return fmt.Errorf("%s: out %w: %s, want %s", op, ErrDTypeMismatch, out.DType(), dtype)
	}
	if !out.IsContiguous() {
		return fmt.Errorf("%s: out %w: not contiguous", op, ErrInvalidStride)
	}
	return nil
}

// MatMulDims returns the batch and matrix dimensions of x@y.
// Batch is 1 for plain 2D products.
func MatMulDims(x, y tensor.Shape) (batch, m, k, n int, err error) {
	switch {
	case len(x) == 2 && len(y) == 2:
		m, k, n = x[0], x[1], y[1]
		if y[0] != k {
			return 0, 0, 0, 0, fmt.Errorf("matmul: %w: %v @ %v", ErrShapeMismatch, x, y)
		}
		return 1, m, k, n, nil
	case len(x) == 3 && len(y) == 3:
		batch, m, k, n = x[0], x[1], x[2], y[2]
		if y[0] != batch || y[1] != k {
			return 0, 0, 0, 0, fmt.Errorf("matmul: %w: %v @ %v", ErrShapeMismatch, x, y)
		}
		return batch, m, k, n, nil
	default:
		return 0, 0, 0, 0, fmt.Errorf("matmul: %w: ranks %d and %d, want 2/2 or 3/3", ErrShapeMismatch, len(x), len(y))
	}
}

// MatMulShape returns the result shape of MatMul for validated dims of x@y.
func MatMulShape(x tensor.Shape, batch, m, n int) tensor.Shape {
	if len(x) == 2 {
		return tensor.Shape{m, n}
	}
	return tensor.Shape{batch, m, n}
}

// GemmDims returns (m, k, n) for op(x)@op(y) where op transposes when requested.
func GemmDims(x, y tensor.Shape, trans1, trans2 bool) (m, k, n int, err error) {
	if len(x) != 2 || len(y) != 2 {
		return 0, 0, 0, fmt.Errorf("gemm: %w: ranks %d and %d, want 2", ErrShapeMismatch, len(x), len(y))
	}
	m, k = x[0], x[1]
	if trans1 {
		m, k = k, m
	}
	ky, n := y[0], y[1]
	if trans2 {
		ky, n = n, ky
	}
	if k != ky {
		return 0, 0, 0, fmt.Errorf("gemm: %w: %v (T=%t) @ %v (T=%t)", ErrShapeMismatch, x, trans1, y, trans2)
	}
	return m, k, n, nil
}

// Seq2ColDims validates a windowing request and returns (rows, width).
func Seq2ColDims(op string, seq *tensor.RawTensor, nW int) (rows, width int, err error) {
	if nW < 0 {
		return 0, 0, fmt.Errorf("%s: %w: nW = %d", op, ErrInvalidArgument, nW)
	}
	if err := CheckRank(op, seq, 2); err != nil {
		return 0, 0, err
	}
	if err := CheckFloat(op, seq); err != nil {
		return 0, 0, err
	}
	return seq.Shape()[0], seq.Shape()[1], nil
}

// BackpropSeq2ColDims validates dY of a windowed sequence and returns the
// original (rows, width).
func BackpropSeq2ColDims(dY *tensor.RawTensor, nW int) (rows, width int, err error) {
	rows, cols, err := Seq2ColDims("backprop_seq2col", dY, nW)
	if err != nil {
		return 0, 0, err
	}
	window := 2*nW + 1
	if cols%window != 0 {
		return 0, 0, fmt.Errorf("backprop_seq2col: %w: width %d not divisible by window %d", ErrShapeMismatch, cols, window)
	}
	return rows, cols / window, nil
}

// CheckWhich validates argmax indices against the gradient they route.
func CheckWhich(op string, grad, which *tensor.RawTensor) error {
	if which.DType() != tensor.Int32 {
		return fmt.Errorf("%s: which %w: %s, want int32", op, ErrUnsupportedDType, which.DType())
	}
	if !which.Shape().Equal(grad.Shape()) {
		return fmt.Errorf("%s: which %w: %v vs %v", op, ErrShapeMismatch, which.Shape(), grad.Shape())
	}
	return nil
}

// CheckScatter validates ScatterAdd arguments and returns (ids, rows of out, row width).
func CheckScatter(out, ids, inputs *tensor.RawTensor) (idx []int32, rows, width int, err error) {
	if ids.DType() != tensor.Int32 {
		return nil, 0, 0, fmt.Errorf("scatter_add: ids %w: %s, want int32", ErrUnsupportedDType, ids.DType())
	}
	if err := CheckSameDType("scatter_add", out, inputs); err != nil {
		return nil, 0, 0, err
	}
	if len(out.Shape()) == 0 || len(inputs.Shape()) == 0 {
		return nil, 0, 0, fmt.Errorf("scatter_add: %w: scalar operands", ErrShapeMismatch)
	}
	if !out.Shape()[1:].Equal(inputs.Shape()[1:]) {
		return nil, 0, 0, fmt.Errorf("scatter_add: %w: row shapes %v vs %v", ErrShapeMismatch, out.Shape()[1:], inputs.Shape()[1:])
	}

	idx = ids.Contiguous().AsInt32()
	if len(idx) != inputs.Shape()[0] {
		return nil, 0, 0, fmt.Errorf("scatter_add: %w: %d ids for %d input rows", ErrShapeMismatch, len(idx), inputs.Shape()[0])
	}
	rows, width = out.Shape().Rows()
	for i, id := range idx {
		if id < 0 || int(id) >= rows {
			return nil, 0, 0, fmt.Errorf("scatter_add: ids[%d] = %d with %d rows: %w", i, id, rows, ErrIndexOutOfRange)
		}
	}
	return idx, rows, width, nil
}

// CheckAdam validates the four buffers of an Adam step.
func CheckAdam(weights, gradient, mom1, mom2 *tensor.RawTensor) error {
	if err := CheckFloat("adam", weights, gradient, mom1, mom2); err != nil {
		return err
	}
	return CheckSameShape("adam", weights, gradient, mom1, mom2)
}

// CheckPositionArgs validates PositionEncode arguments.
func CheckPositionArgs(n, d, period int) error {
	if n < 0 || d < 0 || period <= 0 {
		return fmt.Errorf("position_encode: %w: N=%d D=%d period=%d", ErrInvalidArgument, n, d, period)
	}
	return nil
}

// CheckFanIn validates the fan-in of a normal initialization.
func CheckFanIn(W *tensor.RawTensor, fanIn int) error {
	if fanIn <= 0 {
		return fmt.Errorf("normal_init: %w: fan_in = %d", ErrInvalidArgument, fanIn)
	}
	return CheckFloat("normal_init", W)
}
