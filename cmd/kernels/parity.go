package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// parityInputs are host tensors shared by every case. Cases that mutate
// their operands copy them first.
type parityInputs struct {
	rows, width, pieces int
	threshold           float32
	seed                uint32

	X, Y, dY, wide, maxout *tensor.RawTensor
	lengths, pooled, which *tensor.RawTensor
	ids, scatterIDs        *tensor.RawTensor
	mom1, mom2             *tensor.RawTensor
}

type parityCase struct {
	name string
	run  func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error)
}

type parityResult struct {
	Name    string
	MaxDiff float64
	Passed  bool
	Err     error
}

func randomFloats(rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return tensor.MustFromSlice(data, shape)
}

// randomLengths draws non-empty segments covering all rows.
func randomLengths(rng *rand.Rand, rows int) *tensor.RawTensor {
	var lengths []int32
	for left := rows; left > 0; {
		n := min(1+rng.IntN(4), left)
		lengths = append(lengths, int32(n))
		left -= n
	}
	return tensor.MustFromSlice(lengths, tensor.Shape{len(lengths)})
}

func newParityInputs(host ops.Ops, seed uint64, rows, width int, threshold float32) (*parityInputs, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	in := &parityInputs{
		rows:      rows,
		width:     width,
		pieces:    3,
		threshold: threshold,
		seed:      uint32(seed),
	}
	in.X = randomFloats(rng, tensor.Shape{rows, width})
	in.Y = randomFloats(rng, tensor.Shape{width, width})
	in.dY = randomFloats(rng, tensor.Shape{rows, width})
	in.wide = randomFloats(rng, tensor.Shape{rows, 3 * width})
	in.maxout = randomFloats(rng, tensor.Shape{rows, width, in.pieces})
	in.mom1 = randomFloats(rng, tensor.Shape{rows, width})
	in.mom2 = randomFloats(rng, tensor.Shape{rows, width})
	v := in.mom2.AsFloat32()
	for i := range v {
		v[i] *= v[i]
	}

	in.lengths = randomLengths(rng, rows)
	in.pooled = randomFloats(rng, tensor.Shape{in.lengths.NumElements(), width})
	_, which, err := host.MaxPool(in.X, in.lengths)
	if err != nil {
		return nil, fmt.Errorf("parity inputs: %w", err)
	}
	in.which = which

	ids := make([]uint64, rows)
	scatter := make([]int32, rows)
	for i := range ids {
		ids[i] = rng.Uint64()
		scatter[i] = int32(rng.IntN(rows))
	}
	in.ids = tensor.MustFromSlice(ids, tensor.Shape{rows})
	in.scatterIDs = tensor.MustFromSlice(scatter, tensor.Shape{rows})
	return in, nil
}

func copyOf(t *tensor.RawTensor) *tensor.RawTensor {
	c, err := tensor.Cast(t, t.DType())
	if err != nil {
		panic(fmt.Sprintf("parity: copy: %v", err))
	}
	return c
}

func first(t, _ *tensor.RawTensor, err error) (*tensor.RawTensor, error) {
	return t, err
}

var parityCases = []parityCase{
	{"matmul", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.MatMul(in.X, in.Y, nil)
	}},
	{"gemm_tt", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.Gemm(in.Y, in.X, nil, true, true)
	}},
	{"seq2col", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.Seq2Col(in.X, 1)
	}},
	{"backprop_seq2col", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropSeq2Col(in.wide, 1)
	}},
	{"sum_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.SumPool(in.X, in.lengths)
	}},
	{"mean_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.MeanPool(in.X, in.lengths)
	}},
	{"max_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return first(b.MaxPool(in.X, in.lengths))
	}},
	{"backprop_sum_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropSumPool(in.pooled, in.lengths)
	}},
	{"backprop_mean_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropMeanPool(in.pooled, in.lengths)
	}},
	{"backprop_max_pool", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropMaxPool(in.pooled, in.which, in.lengths)
	}},
	{"relu", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.Relu(in.X)
	}},
	{"backprop_relu", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropRelu(in.dY, in.X)
	}},
	{"mish", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.Mish(in.X, in.threshold, nil)
	}},
	{"backprop_mish", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.BackpropMish(in.dY, in.X, in.threshold, nil)
	}},
	{"maxout", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return first(b.Maxout(in.maxout))
	}},
	{"hash", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.Hash(in.ids, in.seed)
	}},
	{"scatter_add", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		out, err := b.Alloc(in.X.Shape(), tensor.Float32)
		if err != nil {
			return nil, err
		}
		return out, b.ScatterAdd(out, in.scatterIDs, in.X)
	}},
	{"clip_gradient", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		g := copyOf(in.dY)
		return g, b.ClipGradient(g, 1)
	}},
	{"adam", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		w := copyOf(in.X)
		cfg := ops.AdamConfig{Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, LearnRate: 0.01, ModRate: 1}
		return w, b.Adam(w, copyOf(in.dY), copyOf(in.mom1), copyOf(in.mom2), cfg)
	}},
	{"position_encode", func(b ops.Ops, in *parityInputs) (*tensor.RawTensor, error) {
		return b.PositionEncode(in.rows, in.width, 10000)
	}},
}

// maxDiff returns the largest element difference scaled by the reference
// magnitude, reading both tensors back to the host.
func maxDiff(got, want *tensor.RawTensor) (float64, error) {
	if !got.Shape().Equal(want.Shape()) {
		return 0, fmt.Errorf("%w: %v vs %v", ops.ErrShapeMismatch, got.Shape(), want.Shape())
	}
	g, err := tensor.Cast(got, tensor.Float64)
	if err != nil {
		return 0, err
	}
	w, err := tensor.Cast(want, tensor.Float64)
	if err != nil {
		return 0, err
	}
	worst := 0.0
	for i, ref := range w.AsFloat64() {
		d := math.Abs(g.AsFloat64()[i]-ref) / (1 + math.Abs(ref))
		if d > worst || math.IsNaN(d) {
			worst = d
		}
	}
	return worst, nil
}

// runParity evaluates every case on reference and target concurrently and
// reports results sorted by name.
func runParity(ctx context.Context, reference, target ops.Ops, in *parityInputs, tol float64, workers int) ([]parityResult, error) {
	results := make([]parityResult, len(parityCases))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, c := range parityCases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := parityResult{Name: c.name}
			want, err := c.run(reference, in)
			if err != nil {
				return fmt.Errorf("%s on %s: %w", c.name, reference.Name(), err)
			}
			got, err := c.run(target, in)
			if err == nil {
				res.MaxDiff, err = maxDiff(got, want)
			}
			res.Err = err
			res.Passed = err == nil && res.MaxDiff <= tol
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}
