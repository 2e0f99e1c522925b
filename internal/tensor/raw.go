package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted host buffer shared between views.
// A borrowed buffer wraps memory owned by someone else and is never freed here.
type tensorBuffer struct {
	data     []byte
	size     int
	borrowed bool
	refCount atomic.Int32
	mu       sync.Mutex
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
		size: size,
	}
	buf.refCount.Store(1)
	return buf
}

// newPendingBuffer creates a buffer whose host memory is allocated on first use.
// Device-resident tensors start this way.
func newPendingBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{size: size}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release drops one reference and reports whether the buffer was freed.
func (tb *tensorBuffer) release() bool {
	if tb.borrowed {
		return false
	}
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
		return true
	}
	return false
}

func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// span returns the address range of the host memory, or zeros when none
// has been allocated yet.
func (tb *tensorBuffer) span() (start, end uintptr) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(tb.data) == 0 {
		return 0, 0
	}
	start = uintptr(unsafe.Pointer(&tb.data[0]))
	return start, start + uintptr(len(tb.data))
}

// bytes returns the host memory, allocating it for pending buffers.
func (tb *tensorBuffer) bytes() []byte {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.data == nil && tb.size > 0 {
		tb.data = make([]byte, tb.size)
	}
	return tb.data
}

// RawTensor is the low-level tensor representation shared by all backends.
//
// Host data lives in a reference-counted byte buffer. A tensor produced by a
// device backend additionally carries a DeviceData payload; while that payload
// is unrealized the device copy is authoritative and the host bytes are filled
// on first access.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int // element strides
	dtype  DataType
	device Device
	offset int // byte offset into buffer
	dev    *DeviceData
}

// NewRaw creates a new zero-filled host RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// NewDeviceRaw creates a RawTensor whose contents live in a device buffer.
// Host memory is not allocated until the data is read on the host.
func NewDeviceRaw(shape Shape, dtype DataType, device Device, data *DeviceData) (*RawTensor, error) {
	return NewStridedDeviceRaw(shape, shape.ComputeStrides(), dtype, device, data)
}

// NewStridedDeviceRaw is NewDeviceRaw for a device buffer laid out with
// arbitrary element strides, as adopted from foreign owners.
func NewStridedDeviceRaw(shape Shape, strides []int, dtype DataType, device Device, data *DeviceData) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("device tensor requires device data")
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for %d dimensions", ErrInvalidStride, len(strides), len(shape))
	}

	return &RawTensor{
		buffer: newPendingBuffer(Extent(shape, strides) * dtype.Size()),
		shape:  shape.Clone(),
		stride: append([]int(nil), strides...),
		dtype:  dtype,
		device: device,
		dev:    data,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's element strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the dense size of the tensor in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// IsContiguous reports whether the tensor uses the dense row-major layout.
func (r *RawTensor) IsContiguous() bool {
	return r.shape.IsContiguous(r.stride)
}

// IsBorrowed reports whether the memory behind the tensor is owned elsewhere.
func (r *RawTensor) IsBorrowed() bool {
	return r.buffer.borrowed || (r.dev != nil && r.dev.Borrowed())
}

// Resident returns the device payload while the device copy is authoritative,
// or nil for host tensors and tensors whose device data has been read back.
func (r *RawTensor) Resident() *DeviceData {
	if r.dev == nil || r.dev.IsRealized() {
		return nil
	}
	return r.dev
}

// Data returns the raw host bytes, reading device-resident data back first.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	if r.dev != nil && !r.dev.IsRealized() {
		host, err := r.dev.Realize()
		if err != nil {
			panic(fmt.Sprintf("tensor: device read failed: %v", err))
		}
		copy(r.buffer.bytes(), host)
	}
	data := r.buffer.bytes()
	if data == nil {
		return nil
	}
	return data[r.offset:]
}

// elements returns the number of elements addressed by the strided layout.
func (r *RawTensor) elements() int {
	if r.IsContiguous() {
		return r.NumElements()
	}
	return Extent(r.shape, r.stride)
}

// values reinterprets the host bytes as a []T without copying.
func values[T Element](r *RawTensor, want DataType) []T {
	if r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	n := r.elements()
	data := r.Data()
	if n == 0 || len(data) == 0 {
		return []T{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds fixed by elements()
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 { return values[float32](r, Float32) }

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 { return values[float64](r, Float64) }

// AsInt32 interprets the data as []int32.
func (r *RawTensor) AsInt32() []int32 { return values[int32](r, Int32) }

// AsInt64 interprets the data as []int64.
func (r *RawTensor) AsInt64() []int64 { return values[int64](r, Int64) }

// AsUint32 interprets the data as []uint32.
func (r *RawTensor) AsUint32() []uint32 { return values[uint32](r, Uint32) }

// AsUint64 interprets the data as []uint64.
func (r *RawTensor) AsUint64() []uint64 { return values[uint64](r, Uint64) }

// AsUint8 interprets the data as []uint8.
func (r *RawTensor) AsUint8() []uint8 { return values[uint8](r, Uint8) }

// AsBool interprets the data as []bool.
func (r *RawTensor) AsBool() []bool { return values[bool](r, Bool) }

// Clone creates a new header over the same buffer (reference counted).
// Device payloads are shared as well, so a clone is a view, not a copy.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset,
		dev:    r.dev,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
// Borrowed memory is never freed.
func (r *RawTensor) Release() {
	if r.buffer.release() && r.dev != nil {
		r.dev.Release()
	}
}

// Overlaps reports whether r and o may address common memory: views of one
// buffer, borrowed host ranges that intersect, or the same device buffer.
func (r *RawTensor) Overlaps(o *RawTensor) bool {
	if r == nil || o == nil {
		return false
	}
	if r.buffer == o.buffer {
		return true
	}
	if r.dev != nil && o.dev != nil && r.dev.Handle() != nil && r.dev.Handle() == o.dev.Handle() {
		return true
	}
	a0, a1 := r.buffer.span()
	b0, b1 := o.buffer.span()
	return a0 != 0 && b0 != 0 && a0 < b1 && b0 < a1
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}

// Zero fills the host data with zeros.
func (r *RawTensor) Zero() {
	clear(r.Data())
}

// Contiguous returns r when it is already dense, otherwise a dense host copy.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}
	out, err := NewRaw(r.shape, r.dtype, CPU)
	if err != nil {
		panic(fmt.Sprintf("contiguous: %v", err))
	}

	size := r.dtype.Size()
	src := r.Data()
	dst := out.Data()
	index := make([]int, len(r.shape))
	for i := 0; i < out.NumElements(); i++ {
		srcOff := 0
		for d, idx := range index {
			srcOff += idx * r.stride[d]
		}
		copy(dst[i*size:(i+1)*size], src[srcOff*size:(srcOff+1)*size])

		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < r.shape[d] {
				break
			}
			index[d] = 0
		}
	}
	return out
}

// Extent returns the number of elements spanned by a strided layout,
// i.e. the highest addressed element plus one.
func Extent(shape Shape, strides []int) int {
	if shape.NumElements() == 0 {
		return 0
	}
	last := 0
	for i, dim := range shape {
		last += (dim - 1) * strides[i]
	}
	return last + 1
}
