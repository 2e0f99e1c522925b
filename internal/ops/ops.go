package ops

import "github.com/born-ml/kernels/internal/tensor"

// Defaults shared by every backend.
const (
	// DefaultMishThreshold is the input above which mish is the identity.
	DefaultMishThreshold = 5.0

	// DefaultPositionPeriod is the wavelength base of positional encodings.
	DefaultPositionPeriod = 10000
)

// AdamConfig holds the hyper-parameters of a single fused Adam step.
// Backends narrow them to the element type of the buffers they update.
type AdamConfig struct {
	Beta1     float64
	Beta2     float64
	Eps       float64
	LearnRate float64
	// ModRate is accepted for callers that schedule it; the update
	// w -= lr*m/(sqrt(v)+eps) does not read it.
	ModRate float64
}

// Ops is the numeric operation contract.
//
// Every method is synchronous: results are consumable when it returns. Tensor
// arguments are borrowed for the duration of the call and never retained.
// Methods named *Inplace, ScatterAdd, Adam and ClipGradient mutate their
// arguments; an explicit out argument is written when non-nil; everything
// else allocates its result on the backend's device.
//
// Tensors a method writes, whether mutated arguments or out, must be
// contiguous: strided views are accepted as inputs only, and writing one
// fails with ErrInvalidStride before any element changes.
type Ops interface {
	// Name returns a human-readable backend name.
	Name() string
	// Device returns the placement of tensors allocated by this backend.
	Device() tensor.Device

	// Asarray adopts x as a native array with the requested dtype
	// (tensor.KeepDType keeps the source dtype). Native arrays are re-viewed,
	// foreign handles are wrapped without copying, anything else is copied.
	Asarray(x any, dtype tensor.DataType) (*tensor.RawTensor, error)
	// Alloc returns a zero-filled tensor on the backend.
	Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error)

	// MatMul multiplies (M,K)@(K,N) or (B,M,K)@(B,K,N), writing out if non-nil.
	MatMul(x, y, out *tensor.RawTensor) (*tensor.RawTensor, error)
	// Gemm multiplies 2D operands, optionally transposing either one first.
	Gemm(x, y, out *tensor.RawTensor, trans1, trans2 bool) (*tensor.RawTensor, error)

	// Seq2Col maps (M,N) to (M, N*(2*nW+1)) by concatenating nW neighbors on each side.
	Seq2Col(seq *tensor.RawTensor, nW int) (*tensor.RawTensor, error)
	// BackpropSeq2Col is the adjoint of Seq2Col.
	BackpropSeq2Col(dY *tensor.RawTensor, nW int) (*tensor.RawTensor, error)

	MeanPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error)
	SumPool(X, lengths *tensor.RawTensor) (*tensor.RawTensor, error)
	// MaxPool returns the per-segment maxima and, per column, the row offset
	// of the maximum within its segment.
	MaxPool(X, lengths *tensor.RawTensor) (maxes, which *tensor.RawTensor, err error)
	BackpropMeanPool(dMeans, lengths *tensor.RawTensor) (*tensor.RawTensor, error)
	BackpropSumPool(dSums, lengths *tensor.RawTensor) (*tensor.RawTensor, error)
	BackpropMaxPool(dMaxes, which, lengths *tensor.RawTensor) (*tensor.RawTensor, error)

	Relu(X *tensor.RawTensor) (*tensor.RawTensor, error)
	ReluInplace(X *tensor.RawTensor) (*tensor.RawTensor, error)
	BackpropRelu(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error)
	BackpropReluInplace(dY, Y *tensor.RawTensor) (*tensor.RawTensor, error)

	Mish(X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error)
	BackpropMish(dY, X *tensor.RawTensor, threshold float32, out *tensor.RawTensor) (*tensor.RawTensor, error)

	// Maxout reduces (B,O,P) over the last axis to (B,O) maxima and argmax pieces.
	Maxout(X *tensor.RawTensor) (best, which *tensor.RawTensor, err error)
	BackpropMaxout(dY, which *tensor.RawTensor, pieces int) (*tensor.RawTensor, error)

	// Hash maps uint64 ids to (N,4) uint32 MurmurHash3 x86_128 digests.
	Hash(ids *tensor.RawTensor, seed uint32) (*tensor.RawTensor, error)
	// ScatterAdd accumulates inputs[i] into out[ids[i]]; duplicate ids add up.
	ScatterAdd(out, ids, inputs *tensor.RawTensor) error

	// Adam applies one fused Adam update in place and zeroes the gradient.
	Adam(weights, gradient, mom1, mom2 *tensor.RawTensor, cfg AdamConfig) error
	// ClipGradient rescales gradient in place so its L2 norm does not exceed threshold.
	ClipGradient(gradient *tensor.RawTensor, threshold float32) error
	NormalInit(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error)
	NormalInitInplace(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error)
	// PositionEncode builds the (N,D) sinusoidal position table.
	PositionEncode(n, d, period int) (*tensor.RawTensor, error)
}
