package tensor

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrInvalidStride reports stride metadata that cannot describe a view.
var ErrInvalidStride = errors.New("invalid stride")

// Foreign is the protocol for externally owned buffers that can be adopted
// without copying: a raw data pointer plus per-dimension element strides.
//
// DataPtr points to host memory when Device is CPU. For device placements the
// pointer is the owning backend's buffer object (for WebGPU, a *wgpu.Buffer).
type Foreign interface {
	DataPtr() unsafe.Pointer
	Shape() []int
	Stride() []int
	DType() DataType
	Device() Device
}

// ForeignLayout validates a foreign handle's metadata and returns its shape,
// strides and the number of elements its layout spans.
func ForeignLayout(f Foreign) (Shape, []int, int, error) {
	shape := Shape(append([]int(nil), f.Shape()...))
	if err := shape.Validate(); err != nil {
		return nil, nil, 0, fmt.Errorf("foreign shape: %w", err)
	}
	strides := append([]int(nil), f.Stride()...)
	if len(strides) != len(shape) {
		return nil, nil, 0, fmt.Errorf("%w: %d strides for %d dimensions", ErrInvalidStride, len(strides), len(shape))
	}
	for i, s := range strides {
		if s < 0 {
			return nil, nil, 0, fmt.Errorf("%w: negative stride %d at dimension %d", ErrInvalidStride, s, i)
		}
	}
	extent := Extent(shape, strides)
	if extent > 0 && f.DataPtr() == nil {
		return nil, nil, 0, fmt.Errorf("%w: nil data pointer for %d elements", ErrInvalidStride, extent)
	}
	return shape, strides, extent, nil
}

// Borrow builds a non-owning host view over the memory of a foreign handle.
//
// This is an escape hatch: the view aliases memory the Go runtime does not
// manage. It is only valid while the foreign owner keeps the memory alive, and
// nothing here can detect an early free. Release on the view is a no-op.
func Borrow(f Foreign) (*RawTensor, error) {
	if f.Device() != CPU {
		return nil, fmt.Errorf("borrow: %s memory is not host addressable", f.Device())
	}
	shape, strides, extent, err := ForeignLayout(f)
	if err != nil {
		return nil, err
	}

	var data []byte
	if extent > 0 {
		//nolint:gosec // foreign memory adopted by contract, extent validated above
		data = unsafe.Slice((*byte)(f.DataPtr()), extent*f.DType().Size())
	}
	buf := &tensorBuffer{
		data:     data,
		size:     len(data),
		borrowed: true,
	}
	buf.refCount.Store(1)

	return &RawTensor{
		buffer: buf,
		shape:  shape,
		stride: strides,
		dtype:  f.DType(),
		device: CPU,
	}, nil
}
