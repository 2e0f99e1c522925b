//go:build windows

package webgpu

import (
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// gemmTile is the edge of the square workgroup tile of gemmShader.
const gemmTile = 8

// MatMul multiplies (M,K)@(K,N) or (B,M,K)@(B,K,N) on the GPU.
func (b *Backend) MatMul(x, y, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("matmul", x, y); err != nil {
		return nil, err
	}
	if onHost(x, y) {
		if out != nil {
			if err := hostWritable("matmul", out); err != nil {
				return nil, err
			}
		}
		return b.host.MatMul(x, y, out)
	}
	batch, m, k, n, err := ops.MatMulDims(x.Shape(), y.Shape())
	if err != nil {
		return nil, err
	}
	shape := ops.MatMulShape(x.Shape(), batch, m, n)
	if out != nil && aliases(out, x, y) {
		if err := ops.CheckOut("matmul", out, shape, tensor.Float32); err != nil {
			return nil, err
		}
		a, releaseA := b.input(x)
		bm, releaseB := b.input(y)
		b.gemmInto(out, batch, m, k, n, false, false, a, bm, releaseA, releaseB)
		return out, nil
	}
	result, dst, commit, err := b.output("matmul", out, shape, tensor.Float32)
	if err != nil {
		return nil, err
	}

	a, releaseA := b.input(x)
	bm, releaseB := b.input(y)
	b.gemm(batch, m, k, n, false, false, a, bm, dst, releaseA, releaseB)
	if err := commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// Gemm multiplies op(x)@op(y) for 2D operands on the GPU.
// Column-major operands are bound in place with their transpose flag flipped.
func (b *Backend) Gemm(x, y, out *tensor.RawTensor, trans1, trans2 bool) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("gemm", x, y); err != nil {
		return nil, err
	}
	if onHost(x, y) {
		if out != nil {
			if err := hostWritable("gemm", out); err != nil {
				return nil, err
			}
		}
		return b.host.Gemm(x, y, out, trans1, trans2)
	}
	m, k, n, err := ops.GemmDims(x.Shape(), y.Shape(), trans1, trans2)
	if err != nil {
		return nil, err
	}
	if out != nil && aliases(out, x, y) {
		if err := ops.CheckOut("gemm", out, tensor.Shape{m, n}, tensor.Float32); err != nil {
			return nil, err
		}
		a, releaseA, transA := b.storage(x, trans1)
		bm, releaseB, transB := b.storage(y, trans2)
		b.gemmInto(out, 1, m, k, n, transA, transB, a, bm, releaseA, releaseB)
		return out, nil
	}
	result, dst, commit, err := b.output("gemm", out, tensor.Shape{m, n}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	a, releaseA, transA := b.storage(x, trans1)
	bm, releaseB, transB := b.storage(y, trans2)
	b.gemm(1, m, k, n, transA, transB, a, bm, dst, releaseA, releaseB)
	if err := commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// storage binds a 2D operand by its memory layout. A column-major view is
// the row-major transpose of its storage, so it flips trans instead of
// being copied.
func (b *Backend) storage(t *tensor.RawTensor, trans bool) (binding, func(), bool) {
	shape, strides := t.Shape(), t.Strides()
	if t.IsContiguous() || strides[0] != 1 || strides[1] != shape[0] {
		bind, release := b.input(t)
		return bind, release, trans
	}
	if dev := t.Resident(); dev != nil && t.Device() == tensor.WebGPU && dev.Handle() != nil {
		return binding{buffer: deviceHandle(dev), size: align4(t.ByteSize())}, func() {}, !trans
	}
	bind, release := b.upload(t.Data()[:t.ByteSize()])
	return bind, release, !trans
}

// gemmInto computes a product whose resident output buffer is also bound as
// an operand: the kernel writes a scratch buffer that is then copied over out.
func (b *Backend) gemmInto(out *tensor.RawTensor, batch, m, k, n int, transA, transB bool, a, bm binding, retire ...func()) {
	bytes := batch * m * n * 4
	tmp, releaseTmp := b.scratch(bytes)
	dst, _, _ := deviceBuffer(out)
	b.gemm(batch, m, k, n, transA, transB, a, bm, tmp, retire...)
	b.copyBuffer(tmp, binding{buffer: dst}, uint64(bytes), releaseTmp) //nolint:gosec // G115: non-negative
}

func (b *Backend) gemm(batch, m, k, n int, transA, transB bool, a, bm, dst binding, retire ...func()) {
	x := (n + gemmTile - 1) / gemmTile
	y := (m + gemmTile - 1) / gemmTile
	b.dispatch("gemm", gemmShader,
		uint32(x), uint32(y), uint32(batch), //nolint:gosec // G115: grid sizes are non-negative
		uniforms(batch, m, k, n, transA, transB),
		[]binding{a, bm, dst}, retire...)
}
