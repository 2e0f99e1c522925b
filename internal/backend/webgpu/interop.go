//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// onDevice reports whether tensors of dtype can live in device buffers.
func onDevice(dtype tensor.DataType) bool {
	switch dtype {
	case tensor.Float32, tensor.Int32, tensor.Uint32, tensor.Int64, tensor.Uint64:
		return true
	default:
		return false
	}
}

// Asarray adopts x as a device tensor.
//
// Device tensors are returned as is, foreign WebGPU buffers are wrapped
// without copying, and everything else goes through the host and is
// uploaded. Dtypes without a WGSL representation stay on the host.
func (b *Backend) Asarray(x any, dtype tensor.DataType) (*tensor.RawTensor, error) {
	switch v := x.(type) {
	case *tensor.RawTensor:
		if v == nil {
			return nil, fmt.Errorf("asarray: %w: nil tensor", ops.ErrUnsupportedBuffer)
		}
		if v.Device() == tensor.WebGPU && keeps(v, dtype) {
			return v, nil
		}
	case tensor.Foreign:
		switch v.Device() {
		case tensor.WebGPU:
			view, err := b.borrow(v)
			if err != nil {
				return nil, fmt.Errorf("asarray: %w", err)
			}
			if keeps(view, dtype) {
				return view, nil
			}
			x = view
		case tensor.CPU:
		default:
			return nil, fmt.Errorf("asarray: %w: %s memory", ops.ErrUnsupportedBuffer, v.Device())
		}
	}

	host, err := b.host.Asarray(x, dtype)
	if err != nil {
		return nil, err
	}
	if !onDevice(host.DType()) {
		return host, nil
	}
	return b.toDevice(host), nil
}

func keeps(t *tensor.RawTensor, dtype tensor.DataType) bool {
	return dtype == tensor.KeepDType || dtype == t.DType()
}

// borrow wraps a foreign WebGPU buffer. The owner keeps it alive.
func (b *Backend) borrow(f tensor.Foreign) (*tensor.RawTensor, error) {
	shape, strides, extent, err := tensor.ForeignLayout(f)
	if err != nil {
		return nil, err
	}
	size := uint64(extent * f.DType().Size()) //nolint:gosec // G115: non-negative
	data := tensor.BorrowDeviceData(f.DataPtr(), size, b)
	return tensor.NewStridedDeviceRaw(shape, strides, f.DType(), tensor.WebGPU, data)
}

// toDevice uploads a host tensor into a new device buffer.
func (b *Backend) toDevice(t *tensor.RawTensor) *tensor.RawTensor {
	src := t.Contiguous()
	buf, size := b.createBuffer(src.Data()[:src.ByteSize()], storageUsage)
	return b.adopt(t.Shape(), t.DType(), buf, size)
}

// Alloc returns a zero-filled device tensor.
// Freshly created WebGPU buffers are zero-initialized.
func (b *Backend) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("alloc: %w: %w", ops.ErrInvalidArgument, err)
	}
	if !onDevice(dtype) {
		return b.host.Alloc(shape, dtype)
	}
	size := align4(shape.NumElements() * dtype.Size())
	buf := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	})
	return b.adopt(shape, dtype, buf, size), nil
}

// int32Words encodes values as little-endian 32-bit words for upload.
func int32Words[T ~int | ~int32](values []T) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(int32(v))) //nolint:gosec // G115: validated ranges
	}
	return buf
}
