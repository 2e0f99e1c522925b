package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
// For 3D tensors: (B, M, K) @ (B, K, N) -> (B, M, N), one GEMM per batch.
func (cpu *CPUBackend) MatMul(x, y, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("matmul", x, y); err != nil {
		return nil, err
	}
	batch, m, k, n, err := ops.MatMulDims(x.Shape(), y.Shape())
	if err != nil {
		return nil, err
	}
	result, err := cpu.output("matmul", out, ops.MatMulShape(x.Shape(), batch, m, n), x.DType())
	if err != nil {
		return nil, err
	}
	dst, finish := cpu.unaliased("matmul", result, x, y)
	defer finish()

	a, b := x.Contiguous(), y.Contiguous()
	switch x.DType() {
	case tensor.Float32:
		av, bv, cv := a.AsFloat32(), b.AsFloat32(), dst.AsFloat32()
		cpu.forBatch(batch, m*k*n, func(i int) {
			gemm32(false, false,
				av[i*m*k:(i+1)*m*k], m, k,
				bv[i*k*n:(i+1)*k*n], k, n,
				cv[i*m*n:(i+1)*m*n])
		})
	case tensor.Float64:
		av, bv, cv := a.AsFloat64(), b.AsFloat64(), dst.AsFloat64()
		cpu.forBatch(batch, m*k*n, func(i int) {
			gemm64(false, false,
				av[i*m*k:(i+1)*m*k], m, k,
				bv[i*k*n:(i+1)*k*n], k, n,
				cv[i*m*n:(i+1)*m*n])
		})
	}
	return result, nil
}

// Gemm computes op(x) @ op(y) for 2D operands, where op transposes when the
// corresponding flag is set. Transposition is passed to BLAS, never copied.
// Operands stored column-major (a transposed view) are consumed in place too.
func (cpu *CPUBackend) Gemm(x, y, out *tensor.RawTensor, trans1, trans2 bool) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("gemm", x, y); err != nil {
		return nil, err
	}
	m, _, n, err := ops.GemmDims(x.Shape(), y.Shape(), trans1, trans2)
	if err != nil {
		return nil, err
	}
	result, err := cpu.output("gemm", out, tensor.Shape{m, n}, x.DType())
	if err != nil {
		return nil, err
	}
	dst, finish := cpu.unaliased("gemm", result, x, y)
	defer finish()

	a, aRows, aCols, transA := storage(x, trans1)
	b, bRows, bCols, transB := storage(y, trans2)
	switch x.DType() {
	case tensor.Float32:
		gemm32(transA, transB, a.AsFloat32(), aRows, aCols, b.AsFloat32(), bRows, bCols, dst.AsFloat32())
	case tensor.Float64:
		gemm64(transA, transB, a.AsFloat64(), aRows, aCols, b.AsFloat64(), bRows, bCols, dst.AsFloat64())
	}
	return result, nil
}

// unaliased returns the tensor a GEMM should write. BLAS clears C before
// reading A and B, so when result shares memory with an operand the product
// goes to a scratch tensor and finish copies it over result.
func (cpu *CPUBackend) unaliased(op string, result *tensor.RawTensor, operands ...*tensor.RawTensor) (dst *tensor.RawTensor, finish func()) {
	for _, t := range operands {
		if result.Overlaps(t) {
			scratch := cpu.alloc(op, result.Shape(), result.DType())
			return scratch, func() {
				copy(result.Data()[:result.ByteSize()], scratch.Data())
			}
		}
	}
	return result, func() {}
}

// storage returns the row-major matrix backing a 2D tensor, its stored
// dimensions and the transpose flag to hand to BLAS. A column-major view is
// the row-major storage of its transpose, so it flips the flag instead of
// being copied.
func storage(t *tensor.RawTensor, trans bool) (data *tensor.RawTensor, rows, cols int, transposed bool) {
	shape, strides := t.Shape(), t.Strides()
	if t.IsContiguous() {
		return t, shape[0], shape[1], trans
	}
	if strides[0] == 1 && strides[1] == shape[0] {
		return t, shape[1], shape[0], !trans
	}
	return t.Contiguous(), shape[0], shape[1], trans
}

func (cpu *CPUBackend) forBatch(batches, work int, f func(i int)) {
	switch batches {
	case 0:
		return
	case 1:
		f(0)
		return
	}
	cfg := cpu.parallel
	// A single small GEMM is not worth a goroutine.
	if work < 64*64 {
		cfg.Enabled = false
	}
	cfg.MinChunkSize = 1
	parallel.For(batches, f, cfg)
}

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// gemm32 writes op(a) @ op(b) into c, where a is stored (aRows, aCols) and b
// is stored (bRows, bCols), both row-major.
func gemm32(transA, transB bool, a []float32, aRows, aCols int, b []float32, bRows, bCols int, c []float32) {
	m, k, n := aRows, aCols, bCols
	if transA {
		m, k = aCols, aRows
	}
	if transB {
		n = bRows
	}
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		clear(c)
		return
	}
	blas32.Gemm(transpose(transA), transpose(transB), 1,
		blas32.General{Rows: aRows, Cols: aCols, Stride: max(aCols, 1), Data: a},
		blas32.General{Rows: bRows, Cols: bCols, Stride: max(bCols, 1), Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c})
}

func gemm64(transA, transB bool, a []float64, aRows, aCols int, b []float64, bRows, bCols int, c []float64) {
	m, k, n := aRows, aCols, bCols
	if transA {
		m, k = aCols, aRows
	}
	if transB {
		n = bRows
	}
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		clear(c)
		return
	}
	blas64.Gemm(transpose(transA), transpose(transB), 1,
		blas64.General{Rows: aRows, Cols: aCols, Stride: max(aCols, 1), Data: a},
		blas64.General{Rows: bRows, Cols: bCols, Stride: max(bCols, 1), Data: b},
		0,
		blas64.General{Rows: m, Cols: n, Stride: n, Data: c})
}
