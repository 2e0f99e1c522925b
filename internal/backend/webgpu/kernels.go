//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// Seq2Col windows an (M, N) sequence into (M, N*(2*nW+1)).
func (b *Backend) Seq2Col(seq *tensor.RawTensor, nW int) (*tensor.RawTensor, error) {
	rows, width, err := ops.Seq2ColDims("seq2col", seq, nW)
	if err != nil {
		return nil, err
	}
	if onHost(seq) {
		return b.host.Seq2Col(seq, nW)
	}
	window := 2*nW + 1
	result, dst := b.result(tensor.Shape{rows, width * window}, tensor.Float32)
	src, release := b.input(seq)
	b.run("seq2col", seq2colShader, rows*width*window, uniforms(rows, width, nW),
		[]binding{src, dst}, release)
	return result, nil
}

// BackpropSeq2Col sums the window slots of dY back into (M, N).
func (b *Backend) BackpropSeq2Col(dY *tensor.RawTensor, nW int) (*tensor.RawTensor, error) {
	rows, width, err := ops.BackpropSeq2ColDims(dY, nW)
	if err != nil {
		return nil, err
	}
	if onHost(dY) {
		return b.host.BackpropSeq2Col(dY, nW)
	}
	result, dst := b.result(tensor.Shape{rows, width}, tensor.Float32)
	src, release := b.input(dY)
	b.run("backprop_seq2col", backpropSeq2colShader, rows*width, uniforms(rows, width, nW),
		[]binding{src, dst}, release)
	return result, nil
}

// segments validates a row-segmented reduction over X.
func segments(op string, X, lengths *tensor.RawTensor) (starts []int, lens []int32, err error) {
	if err := ops.CheckRank(op, X, 2); err != nil {
		return nil, nil, err
	}
	if err := ops.CheckFloat(op, X); err != nil {
		return nil, nil, err
	}
	starts, _, err = ops.Segments(lengths, X.Shape()[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return starts, lengths.Contiguous().AsInt32(), nil
}

// gradSegments validates the per-segment gradient of a pooling backprop and
// returns, per output row, the segment it belongs to.
func gradSegments(op string, d, lengths *tensor.RawTensor) (starts []int, lens, rows []int32, err error) {
	if err := ops.CheckRank(op, d, 2); err != nil {
		return nil, nil, nil, err
	}
	if err := ops.CheckFloat(op, d); err != nil {
		return nil, nil, nil, err
	}
	starts, total, err := ops.Segments(lengths, -1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if d.Shape()[0] != len(starts) {
		return nil, nil, nil, fmt.Errorf("%s: %w: %d gradient rows for %d segments", op, ops.ErrShapeMismatch, d.Shape()[0], len(starts))
	}
	lens = lengths.Contiguous().AsInt32()
	rows = make([]int32, 0, total)
	for seg, n := range lens {
		for range n {
			rows = append(rows, int32(seg)) //nolint:gosec // G115: segment count fits int32
		}
	}
	return starts, lens, rows, nil
}

// SumPool sums the rows of each segment.
func (b *Backend) SumPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	if onHost(X) {
		return b.host.SumPool(X, lengths)
	}
	return b.pool("sum_pool", X, lengths, false)
}

// MeanPool averages the rows of each segment. An empty segment averages to 0.
func (b *Backend) MeanPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	if onHost(X) {
		return b.host.MeanPool(X, lengths)
	}
	return b.pool("mean_pool", X, lengths, true)
}

func (b *Backend) pool(op string, X, lengths *tensor.RawTensor, mean bool) (*tensor.RawTensor, error) {
	starts, lens, err := segments(op, X, lengths)
	if err != nil {
		return nil, err
	}
	width := X.Shape()[1]
	result, dst := b.result(tensor.Shape{len(starts), width}, tensor.Float32)

	src, releaseX := b.input(X)
	st, releaseStarts := b.upload(int32Words(starts))
	ln, releaseLens := b.upload(int32Words(lens))
	b.run("pool", poolShader, len(starts)*width, uniforms(len(starts), width, mean),
		[]binding{src, st, ln, dst}, releaseX, releaseStarts, releaseLens)
	return result, nil
}

// MaxPool takes the per-column maximum of each segment and its row offset.
// Empty segments have no maximum and are rejected.
func (b *Backend) MaxPool(X, lengths *tensor.RawTensor) (maxes, which *tensor.RawTensor, err error) {
	if onHost(X) {
		return b.host.MaxPool(X, lengths)
	}
	starts, lens, err := segments("max_pool", X, lengths)
	if err != nil {
		return nil, nil, err
	}
	for seg, n := range lens {
		if n == 0 {
			return nil, nil, fmt.Errorf("max_pool: segment %d: %w", seg, ops.ErrEmptySegment)
		}
	}
	width := X.Shape()[1]
	maxes, maxesBind := b.result(tensor.Shape{len(starts), width}, tensor.Float32)
	which, whichBind := b.result(tensor.Shape{len(starts), width}, tensor.Int32)

	src, releaseX := b.input(X)
	st, releaseStarts := b.upload(int32Words(starts))
	ln, releaseLens := b.upload(int32Words(lens))
	b.run("max_pool", maxPoolShader, len(starts)*width, uniforms(len(starts), width),
		[]binding{src, st, ln, maxesBind, whichBind}, releaseX, releaseStarts, releaseLens)
	return maxes, which, nil
}

// BackpropSumPool broadcasts each segment gradient to every row of the segment.
func (b *Backend) BackpropSumPool(dSums, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	if onHost(dSums) {
		return b.host.BackpropSumPool(dSums, lengths)
	}
	return b.backpropPool("backprop_sum_pool", dSums, lengths, false)
}

// BackpropMeanPool broadcasts each segment gradient divided by the segment length.
func (b *Backend) BackpropMeanPool(dMeans, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	if onHost(dMeans) {
		return b.host.BackpropMeanPool(dMeans, lengths)
	}
	return b.backpropPool("backprop_mean_pool", dMeans, lengths, true)
}

func (b *Backend) backpropPool(op string, d, lengths *tensor.RawTensor, mean bool) (*tensor.RawTensor, error) {
	_, lens, rows, err := gradSegments(op, d, lengths)
	if err != nil {
		return nil, err
	}
	width := d.Shape()[1]
	result, dst := b.result(tensor.Shape{len(rows), width}, tensor.Float32)

	grad, releaseD := b.input(d)
	rw, releaseRows := b.upload(int32Words(rows))
	ln, releaseLens := b.upload(int32Words(lens))
	b.run("backprop_pool", backpropPoolShader, len(rows)*width, uniforms(len(rows), width, mean),
		[]binding{grad, rw, ln, dst}, releaseD, releaseRows, releaseLens)
	return result, nil
}

// BackpropMaxPool routes each segment gradient to the row that held the maximum.
func (b *Backend) BackpropMaxPool(dMaxes, which, lengths *tensor.RawTensor) (*tensor.RawTensor, error) {
	if onHost(dMaxes) {
		return b.host.BackpropMaxPool(dMaxes, which, lengths)
	}
	starts, lens, rows, err := gradSegments("backprop_max_pool", dMaxes, lengths)
	if err != nil {
		return nil, err
	}
	if err := ops.CheckWhich("backprop_max_pool", dMaxes, which); err != nil {
		return nil, err
	}
	width := dMaxes.Shape()[1]
	for i, w := range which.Contiguous().AsInt32() {
		seg := i / width
		if w < 0 || w >= lens[seg] {
			return nil, fmt.Errorf("backprop_max_pool: which[%d] = %d in segment of %d rows: %w", i, w, lens[seg], ops.ErrIndexOutOfRange)
		}
	}
	result, dst := b.result(tensor.Shape{len(rows), width}, tensor.Float32)

	grad, releaseD := b.input(dMaxes)
	arg, releaseWhich := b.input(which)
	rw, releaseRows := b.upload(int32Words(rows))
	st, releaseStarts := b.upload(int32Words(starts))
	b.run("backprop_max_pool", backpropMaxPoolShader, len(rows)*width, uniforms(len(rows), width),
		[]binding{grad, arg, rw, st, dst}, releaseD, releaseWhich, releaseRows, releaseStarts)
	return result, nil
}

// Relu computes max(0, x) into a new tensor.
func (b *Backend) Relu(X *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("relu", X); err != nil {
		return nil, err
	}
	if onHost(X) {
		return b.host.Relu(X)
	}
	result, dst := b.result(X.Shape(), tensor.Float32)
	src, release := b.input(X)
	b.run("relu", reluShader, X.NumElements(), uniforms(X.NumElements()),
		[]binding{src, dst}, release)
	return result, nil
}

// ReluInplace computes max(0, x) in place and returns X.
func (b *Backend) ReluInplace(X *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("relu", X); err != nil {
		return nil, err
	}
	if err := inplace("relu", X); err != nil {
		return nil, err
	}
	if onHost(X) {
		if err := hostWritable("relu", X); err != nil {
			return nil, err
		}
		return b.host.ReluInplace(X)
	}
	data, commit := b.mutable(X, true)
	b.run("relu_inplace", reluInplaceShader, X.NumElements(), uniforms(X.NumElements()),
		[]binding{data})
	if err := commit(); err != nil {
		return nil, err
	}
	return X, nil
}

// BackpropRelu passes dY where the forward output was positive.
func (b *Backend) BackpropRelu(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_relu", dY, Y); err != nil {
		return nil, err
	}
	if onHost(dY) {
		return b.host.BackpropRelu(dY, Y)
	}
	result, dst := b.result(dY.Shape(), tensor.Float32)
	grad, releaseD := b.input(dY)
	out, releaseY := b.input(Y)
	b.run("relu_backward", reluBackwardShader, dY.NumElements(), uniforms(dY.NumElements()),
		[]binding{grad, out, dst}, releaseD, releaseY)
	return result, nil
}

// BackpropReluInplace is BackpropRelu writing into dY.
func (b *Backend) BackpropReluInplace(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_relu", dY, Y); err != nil {
		return nil, err
	}
	if err := inplace("backprop_relu", dY); err != nil {
		return nil, err
	}
	if onHost(dY) {
		if err := hostWritable("backprop_relu", dY); err != nil {
			return nil, err
		}
		return b.host.BackpropReluInplace(dY, Y)
	}
	grad, commit := b.mutable(dY, true)
	out, releaseY := b.input(Y)
	b.run("relu_backward_inplace", reluBackwardInplaceShader, dY.NumElements(), uniforms(dY.NumElements()),
		[]binding{grad, out}, releaseY)
	if err := commit(); err != nil {
		return nil, err
	}
	return dY, nil
}

// Mish computes x*tanh(softplus(x)), the identity above threshold.
func (b *Backend) Mish(X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckFloat("mish", X); err != nil {
		return nil, err
	}
	if onHost(X) {
		if out != nil {
			if err := hostWritable("mish", out); err != nil {
				return nil, err
			}
		}
		return b.host.Mish(X, threshold, out)
	}
	n := X.NumElements()
	return b.elementwise("mish", mishShader, out, X.Shape(), uniforms(n, threshold), X)
}

// BackpropMish multiplies dY by the derivative of mish at X.
func (b *Backend) BackpropMish(dY, X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := checkGradPair("backprop_mish", dY, X); err != nil {
		return nil, err
	}
	if onHost(X) {
		if out != nil {
			if err := hostWritable("backprop_mish", out); err != nil {
				return nil, err
			}
		}
		return b.host.BackpropMish(dY, X, threshold, out)
	}
	n := X.NumElements()
	return b.elementwise("mish_backward", mishBackwardShader, out, X.Shape(), uniforms(n, threshold), dY, X)
}

// elementwise runs a kernel reading ins and writing one element per thread
// into out, or into a new tensor when out is nil. An out sharing a buffer
// with an input is written through a temporary.
func (b *Backend) elementwise(op, code string, out *tensor.RawTensor, shape tensor.Shape, params []byte, ins ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := ops.CheckOut(op, out, shape, tensor.Float32); err != nil {
		return nil, err
	}
	n := shape.NumElements()
	bindings := make([]binding, 0, len(ins)+1)
	retire := make([]func(), 0, len(ins)+1)
	for _, in := range ins {
		bind, release := b.input(in)
		bindings = append(bindings, bind)
		retire = append(retire, release)
	}

	if out != nil && aliases(out, ins...) {
		tmp, releaseTmp := b.scratch(n * 4)
		dst, _, _ := deviceBuffer(out)
		b.run(op, code, n, params, append(bindings, tmp), retire...)
		b.copyBuffer(tmp, binding{buffer: dst}, uint64(n*4), releaseTmp) //nolint:gosec // G115: non-negative
		return out, nil
	}

	result, dst, commit, err := b.output(op, out, shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	b.run(op, code, n, params, append(bindings, dst), retire...)
	if err := commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// aliases reports whether out is resident in the same device buffer as any
// of ins, including strided views of it.
func aliases(out *tensor.RawTensor, ins ...*tensor.RawTensor) bool {
	if _, _, ok := deviceBuffer(out); !ok {
		return false
	}
	for _, in := range ins {
		if in.Resident() != nil && out.Overlaps(in) {
			return true
		}
	}
	return false
}

func checkGradPair(op string, dY, X *tensor.RawTensor) error {
	if err := ops.CheckFloat(op, dY, X); err != nil {
		return err
	}
	return ops.CheckSameShape(op, dY, X)
}

// Maxout reduces (B,O,P) over the pieces axis.
func (b *Backend) Maxout(X *tensor.RawTensor) (best, which *tensor.RawTensor, err error) {
	if err := ops.CheckRank("maxout", X, 3); err != nil {
		return nil, nil, err
	}
	if err := ops.CheckFloat("maxout", X); err != nil {
		return nil, nil, err
	}
	if onHost(X) {
		return b.host.Maxout(X)
	}
	shape := X.Shape()
	pieces := shape[2]
	if pieces == 0 {
		return nil, nil, fmt.Errorf("maxout: %w: zero pieces", ops.ErrInvalidArgument)
	}

	out := tensor.Shape{shape[0], shape[1]}
	best, bestBind := b.result(out, tensor.Float32)
	which, whichBind := b.result(out, tensor.Int32)
	src, release := b.input(X)
	b.run("maxout", maxoutShader, out.NumElements(), uniforms(out.NumElements(), pieces),
		[]binding{src, bestBind, whichBind}, release)
	return best, which, nil
}

// BackpropMaxout scatters (B,O) gradients to the winning pieces of (B,O,P).
func (b *Backend) BackpropMaxout(dY, which *tensor.RawTensor, pieces int) (*tensor.RawTensor, error) {
	if pieces <= 0 {
		return nil, fmt.Errorf("backprop_maxout: %w: pieces = %d", ops.ErrInvalidArgument, pieces)
	}
	if err := ops.CheckRank("backprop_maxout", dY, 2); err != nil {
		return nil, err
	}
	if err := ops.CheckFloat("backprop_maxout", dY); err != nil {
		return nil, err
	}
	if onHost(dY) {
		return b.host.BackpropMaxout(dY, which, pieces)
	}
	if err := ops.CheckWhich("backprop_maxout", dY, which); err != nil {
		return nil, err
	}
	for i, p := range which.Contiguous().AsInt32() {
		if p < 0 || int(p) >= pieces {
			return nil, fmt.Errorf("backprop_maxout: which[%d] = %d with %d pieces: %w", i, p, pieces, ops.ErrIndexOutOfRange)
		}
	}

	shape := dY.Shape()
	result, dst := b.result(tensor.Shape{shape[0], shape[1], pieces}, tensor.Float32)
	grad, releaseD := b.input(dY)
	arg, releaseWhich := b.input(which)
	size := shape[0] * shape[1] * pieces
	b.run("maxout_backward", maxoutBackwardShader, size, uniforms(size, pieces),
		[]binding{grad, arg, dst}, releaseD, releaseWhich)
	return result, nil
}

// Hash maps uint64 ids to (N,4) MurmurHash3 x86_128 digests.
func (b *Backend) Hash(ids *tensor.RawTensor, seed uint32) (*tensor.RawTensor, error) {
	if err := ops.CheckRank("hash", ids, 1); err != nil {
		return nil, err
	}
	if ids.DType() != tensor.Uint64 {
		return nil, fmt.Errorf("hash: ids %w: %s, want uint64", ops.ErrUnsupportedDType, ids.DType())
	}
	n := ids.NumElements()
	result, dst := b.result(tensor.Shape{n, 4}, tensor.Uint32)
	// Little-endian uint64 storage already is the (low, high) word pair.
	keys, release := b.input(ids)
	b.run("hash", hashShader, n, uniforms(n, seed), []binding{keys, dst}, release)
	return result, nil
}

// ScatterAdd accumulates inputs[i] into out[ids[i]]; duplicate ids add up.
func (b *Backend) ScatterAdd(out, ids, inputs *tensor.RawTensor) error {
	if err := ops.CheckFloat("scatter_add", out, inputs); err != nil {
		return err
	}
	idx, rows, width, err := ops.CheckScatter(out, ids, inputs)
	if err != nil {
		return err
	}
	if err := inplace("scatter_add", out); err != nil {
		return err
	}
	if onHost(out) {
		if err := hostWritable("scatter_add", out); err != nil {
			return err
		}
		return b.host.ScatterAdd(out, ids, inputs)
	}
	if len(idx) == 0 {
		return nil
	}

	dst, commit := b.mutable(out, true)
	keys, releaseIDs := b.upload(int32Words(idx))
	src, releaseInputs := b.input(inputs)
	b.run("scatter_add", scatterAddShader, rows*width, uniforms(rows, width, len(idx)),
		[]binding{dst, keys, src}, releaseIDs, releaseInputs)
	return commit()
}
