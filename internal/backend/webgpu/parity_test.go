//go:build windows

package webgpu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

const tolerance = 1e-4

func assertClose(t *testing.T, want, got *tensor.RawTensor) {
	t.Helper()
	require.Equal(t, want.Shape(), got.Shape())
	assert.InDeltaSlice(t, want.AsFloat32(), got.AsFloat32(), tolerance)
}

func TestParity_MatMul(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(1, 2))

	x := f32(t, random(rng, 2*3*4), 2, 3, 4)
	y := f32(t, random(rng, 2*4*5), 2, 4, 5)
	want, err := host.MatMul(x, y, nil)
	require.NoError(t, err)
	got, err := backend.MatMul(x, y, nil)
	require.NoError(t, err)
	assertClose(t, want, got)
}

func TestParity_Gemm(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(3, 4))

	x := f32(t, random(rng, 6*3), 6, 3)
	y := f32(t, random(rng, 5*6), 5, 6)
	for _, tc := range []struct {
		name           string
		trans1, trans2 bool
		x, y           *tensor.RawTensor
	}{
		{"TT", true, true, x, y},
		{"NN", false, false, f32(t, random(rng, 4*6), 4, 6), x},
	} {
		t.Run(tc.name, func(t *testing.T) {
			want, err := host.Gemm(tc.x, tc.y, nil, tc.trans1, tc.trans2)
			require.NoError(t, err)
			got, err := backend.Gemm(tc.x, tc.y, nil, tc.trans1, tc.trans2)
			require.NoError(t, err)
			assertClose(t, want, got)
		})
	}
}

func TestParity_Gemm_Out(t *testing.T) {
	backend := newTestBackend(t)
	x := f32(t, []float32{1, 2, 3, 4}, 2, 2)

	out, err := backend.Alloc(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	got, err := backend.Gemm(x, x, out, false, false)
	require.NoError(t, err)
	assert.Same(t, out, got)
	assert.Equal(t, []float32{7, 10, 15, 22}, out.AsFloat32())

	host := f32(t, make([]float32, 4), 2, 2)
	_, err = backend.Gemm(x, x, host, false, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 11, 11, 25}, host.AsFloat32())
}

func TestMatMul_OutAliasesOperand(t *testing.T) {
	backend := newTestBackend(t)

	x, err := backend.Asarray(f32(t, []float32{1, 2, 3, 4}, 2, 2), tensor.KeepDType)
	require.NoError(t, err)
	ones, err := backend.Asarray(f32(t, []float32{1, 1, 1, 1}, 2, 2), tensor.KeepDType)
	require.NoError(t, err)
	require.NotNil(t, x.Resident())

	got, err := backend.MatMul(x, ones, x)
	require.NoError(t, err)
	assert.Same(t, x, got)
	assert.Equal(t, []float32{3, 3, 7, 7}, x.AsFloat32())

	got, err = backend.Gemm(ones, x, x, false, false)
	require.NoError(t, err)
	assert.Same(t, x, got)
	assert.Equal(t, []float32{10, 10, 10, 10}, x.AsFloat32())
}

func TestParity_Seq2Col(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(5, 6))
	seq := f32(t, random(rng, 7*3), 7, 3)

	want, err := host.Seq2Col(seq, 2)
	require.NoError(t, err)
	got, err := backend.Seq2Col(seq, 2)
	require.NoError(t, err)
	assertClose(t, want, got)

	wantBack, err := host.BackpropSeq2Col(want, 2)
	require.NoError(t, err)
	gotBack, err := backend.BackpropSeq2Col(got, 2)
	require.NoError(t, err)
	assertClose(t, wantBack, gotBack)
}

func TestParity_Pooling(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(7, 8))
	X := f32(t, random(rng, 6*4), 6, 4)
	lengths := i32(t, 2, 0, 3)

	for name, pool := range map[string]func(ops.Ops) (*tensor.RawTensor, error){
		"sum":  func(o ops.Ops) (*tensor.RawTensor, error) { return o.SumPool(X, lengths) },
		"mean": func(o ops.Ops) (*tensor.RawTensor, error) { return o.MeanPool(X, lengths) },
	} {
		t.Run(name, func(t *testing.T) {
			want, err := pool(host)
			require.NoError(t, err)
			got, err := pool(backend)
			require.NoError(t, err)
			assertClose(t, want, got)
		})
	}

	d := f32(t, random(rng, 3*4), 3, 4)
	wantSum, err := host.BackpropSumPool(d, lengths)
	require.NoError(t, err)
	gotSum, err := backend.BackpropSumPool(d, lengths)
	require.NoError(t, err)
	assertClose(t, wantSum, gotSum)

	wantMean, err := host.BackpropMeanPool(d, lengths)
	require.NoError(t, err)
	gotMean, err := backend.BackpropMeanPool(d, lengths)
	require.NoError(t, err)
	assertClose(t, wantMean, gotMean)
}

func TestParity_MaxPool(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(9, 10))
	X := f32(t, random(rng, 5*3), 5, 3)
	lengths := i32(t, 2, 3)

	wantMax, wantWhich, err := host.MaxPool(X, lengths)
	require.NoError(t, err)
	gotMax, gotWhich, err := backend.MaxPool(X, lengths)
	require.NoError(t, err)
	assertClose(t, wantMax, gotMax)
	assert.Equal(t, wantWhich.AsInt32(), gotWhich.AsInt32())

	d := f32(t, random(rng, 2*3), 2, 3)
	want, err := host.BackpropMaxPool(d, wantWhich, lengths)
	require.NoError(t, err)
	got, err := backend.BackpropMaxPool(d, gotWhich, lengths)
	require.NoError(t, err)
	assertClose(t, want, got)

	_, _, err = backend.MaxPool(X, i32(t, 0, 5))
	assert.ErrorIs(t, err, ops.ErrEmptySegment)
}

func TestParity_Activations(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(11, 12))
	X := f32(t, random(rng, 300), 300)
	dY := f32(t, random(rng, 300), 300)

	want, err := host.Relu(X)
	require.NoError(t, err)
	got, err := backend.Relu(X)
	require.NoError(t, err)
	assertClose(t, want, got)

	wantGrad, err := host.BackpropRelu(dY, want)
	require.NoError(t, err)
	gotGrad, err := backend.BackpropRelu(dY, got)
	require.NoError(t, err)
	assertClose(t, wantGrad, gotGrad)

	wantMish, err := host.Mish(X, ops.DefaultMishThreshold, nil)
	require.NoError(t, err)
	gotMish, err := backend.Mish(X, ops.DefaultMishThreshold, nil)
	require.NoError(t, err)
	assertClose(t, wantMish, gotMish)

	wantBack, err := host.BackpropMish(dY, X, ops.DefaultMishThreshold, nil)
	require.NoError(t, err)
	gotBack, err := backend.BackpropMish(dY, X, ops.DefaultMishThreshold, nil)
	require.NoError(t, err)
	assertClose(t, wantBack, gotBack)
}

func TestReluInplace(t *testing.T) {
	backend := newTestBackend(t)

	host := f32(t, []float32{-1, 2, -3}, 3)
	got, err := backend.ReluInplace(host)
	require.NoError(t, err)
	assert.Same(t, host, got)
	assert.Equal(t, []float32{0, 2, 0}, host.AsFloat32())

	dev, err := backend.Asarray([]float32{4, -5}, tensor.KeepDType)
	require.NoError(t, err)
	_, err = backend.ReluInplace(dev)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0}, dev.AsFloat32())
}

func TestMish_OutAliasesInput(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()

	X, err := backend.Asarray([]float32{-1, 0, 1, 6}, tensor.KeepDType)
	require.NoError(t, err)
	want, err := host.Mish(f32(t, []float32{-1, 0, 1, 6}, 4), ops.DefaultMishThreshold, nil)
	require.NoError(t, err)

	got, err := backend.Mish(X, ops.DefaultMishThreshold, X)
	require.NoError(t, err)
	assert.Same(t, X, got)
	assertClose(t, want, X)
}

func TestParity_Maxout(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(13, 14))
	X := f32(t, random(rng, 4*3*5), 4, 3, 5)

	wantBest, wantWhich, err := host.Maxout(X)
	require.NoError(t, err)
	gotBest, gotWhich, err := backend.Maxout(X)
	require.NoError(t, err)
	assertClose(t, wantBest, gotBest)
	assert.Equal(t, wantWhich.AsInt32(), gotWhich.AsInt32())

	dY := f32(t, random(rng, 4*3), 4, 3)
	want, err := host.BackpropMaxout(dY, wantWhich, 5)
	require.NoError(t, err)
	got, err := backend.BackpropMaxout(dY, gotWhich, 5)
	require.NoError(t, err)
	assertClose(t, want, got)
}

func TestParity_Hash(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()

	ids, err := tensor.FromSlice([]uint64{0, 1, 42, 1 << 40, ^uint64(0)}, tensor.Shape{5})
	require.NoError(t, err)
	want, err := host.Hash(ids, 7)
	require.NoError(t, err)
	got, err := backend.Hash(ids, 7)
	require.NoError(t, err)
	assert.Equal(t, want.AsUint32(), got.AsUint32())
}

func TestParity_ScatterAdd(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()

	inputs := f32(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)
	ids := i32(t, 2, 0, 2)
	want := f32(t, make([]float32, 6), 3, 2)
	require.NoError(t, host.ScatterAdd(want, ids, inputs))

	got, err := backend.Alloc(tensor.Shape{3, 2}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, backend.ScatterAdd(got, ids, inputs))
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestParity_Adam(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewPCG(15, 16))
	w, g := random(rng, 50), random(rng, 50)
	cfg := ops.AdamConfig{Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, LearnRate: 0.01}

	state := func() []*tensor.RawTensor {
		return []*tensor.RawTensor{
			f32(t, append([]float32(nil), w...), 50),
			f32(t, append([]float32(nil), g...), 50),
			f32(t, make([]float32, 50), 50),
			f32(t, make([]float32, 50), 50),
		}
	}
	want, got := state(), state()
	require.NoError(t, host.Adam(want[0], want[1], want[2], want[3], cfg))
	require.NoError(t, backend.Adam(got[0], got[1], got[2], got[3], cfg))
	for i := range want {
		assertClose(t, want[i], got[i])
	}
	assert.Equal(t, make([]float32, 50), got[1].AsFloat32())
}

func TestClipGradient(t *testing.T) {
	backend := newTestBackend(t)

	g := f32(t, []float32{3, 4}, 2)
	require.NoError(t, backend.ClipGradient(g, 1))
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, g.AsFloat32(), tolerance)

	small := f32(t, []float32{0.3, 0.4}, 2)
	require.NoError(t, backend.ClipGradient(small, 1))
	assert.Equal(t, []float32{0.3, 0.4}, small.AsFloat32())

	assert.ErrorIs(t, backend.ClipGradient(g, -1), ops.ErrInvalidArgument)
}

func TestNormalInit(t *testing.T) {
	backend := newTestBackend(t)

	W := f32(t, make([]float32, 4096), 64, 64)
	got, err := backend.NormalInit(W, 16)
	require.NoError(t, err)
	values := got.AsFloat32()

	var sum, sq float64
	for _, v := range values {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	mean := sum / float64(len(values))
	variance := sq/float64(len(values)) - mean*mean
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1.0/16, variance, 0.01)

	again, err := backend.NormalInit(W, 16)
	require.NoError(t, err)
	assert.NotEqual(t, values, again.AsFloat32())
}

func TestPositionEncode(t *testing.T) {
	backend := newTestBackend(t)
	host := cpu.New()

	want, err := host.PositionEncode(5, 7, ops.DefaultPositionPeriod)
	require.NoError(t, err)
	got, err := backend.PositionEncode(5, 7, ops.DefaultPositionPeriod)
	require.NoError(t, err)
	assert.Equal(t, tensor.WebGPU, got.Device())
	assertClose(t, want, got)
}

func TestGrid1D(t *testing.T) {
	x, y := grid1D(10)
	assert.Equal(t, [2]uint32{1, 1}, [2]uint32{x, y})

	x, y = grid1D(workgroupSize*maxWorkgroupsPerDim + 1)
	assert.Equal(t, uint32(maxWorkgroupsPerDim), x)
	assert.Equal(t, uint32(2), y)

	x, _ = grid1D(0)
	assert.Zero(t, x)
}
