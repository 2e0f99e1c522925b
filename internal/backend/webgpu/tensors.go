//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// deviceBuffer returns the WebGPU buffer behind a dense device-resident tensor.
func deviceBuffer(t *tensor.RawTensor) (*wgpu.Buffer, uint64, bool) {
	dev := t.Resident()
	if dev == nil || t.Device() != tensor.WebGPU || !t.IsContiguous() || dev.Handle() == nil {
		return nil, 0, false
	}
	return deviceHandle(dev), align4(t.ByteSize()), true
}

func deviceHandle(dev *tensor.DeviceData) *wgpu.Buffer {
	return (*wgpu.Buffer)(dev.Handle())
}

// input binds t for reading. Resident tensors are bound in place, anything
// else is uploaded into a temporary released through the returned func.
func (b *Backend) input(t *tensor.RawTensor) (binding, func()) {
	if buf, size, ok := deviceBuffer(t); ok {
		return binding{buffer: buf, size: size}, func() {}
	}
	buf, size := b.createBuffer(t.Contiguous().Data()[:t.ByteSize()], storageUsage)
	return binding{buffer: buf, size: size}, buf.Release
}

// upload binds a host slice of 4-byte words for reading.
func (b *Backend) upload(words []byte) (binding, func()) {
	buf, size := b.createBuffer(words, storageUsage)
	return binding{buffer: buf, size: size}, buf.Release
}

// result acquires a pooled buffer and wraps it as a device-resident tensor.
// Pooled buffers are dirty: the kernel writing it must cover every element.
func (b *Backend) result(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, binding) {
	bytes := shape.NumElements() * dtype.Size()
	buf, size := b.bufferPool.Acquire(align4(bytes), storageUsage)
	return b.adopt(shape, dtype, buf, size), binding{buffer: buf, size: align4(bytes)}
}

// adopt hands an owned buffer of the given pooled size to a new tensor.
func (b *Backend) adopt(shape tensor.Shape, dtype tensor.DataType, buf *wgpu.Buffer, size uint64) *tensor.RawTensor {
	b.ownedMu.Lock()
	b.owned[buf] = size
	b.ownedMu.Unlock()
	b.trackAlloc(size)

	bytes := uint64(shape.NumElements() * dtype.Size()) //nolint:gosec // G115: non-negative
	data := tensor.NewDeviceData(unsafe.Pointer(buf), bytes, b)
	out, err := tensor.NewDeviceRaw(shape, dtype, tensor.WebGPU, data)
	if err != nil {
		panic(fmt.Sprintf("webgpu: failed to create result tensor: %v", err))
	}
	return out
}

// scratch acquires a pooled buffer for an intermediate the caller releases.
func (b *Backend) scratch(bytes int) (binding, func()) {
	buf, size := b.bufferPool.Acquire(align4(bytes), storageUsage)
	return binding{buffer: buf, size: align4(bytes)}, func() {
		b.bufferPool.Release(buf, size, storageUsage)
	}
}

// mutable binds t for writing. Resident tensors are written in place. For
// host tensors the kernel writes a device copy and commit copies it back;
// when load is set the copy starts from t's current contents.
func (b *Backend) mutable(t *tensor.RawTensor, load bool) (binding, func() error) {
	if buf, size, ok := deviceBuffer(t); ok {
		return binding{buffer: buf, size: size}, func() error { return nil }
	}

	var bind binding
	var release func()
	if load {
		bind, release = b.upload(t.Data()[:t.ByteSize()])
	} else {
		bind, release = b.scratch(t.ByteSize())
	}
	return bind, func() error {
		defer release()
		if t.ByteSize() == 0 {
			return nil
		}
		data, err := b.readBuffer(bind.buffer, uint64(t.ByteSize())) //nolint:gosec // G115: non-negative
		if err != nil {
			return err
		}
		copy(t.Data(), data)
		return nil
	}
}

// output returns the tensor an operation writes: out when provided, else a
// new device tensor. commit must run after the kernel is dispatched.
func (b *Backend) output(op string, out *tensor.RawTensor, shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, binding, func() error, error) {
	if err := ops.CheckOut(op, out, shape, dtype); err != nil {
		return nil, binding{}, nil, err
	}
	if out != nil {
		bind, commit := b.mutable(out, false)
		return out, bind, commit, nil
	}
	result, bind := b.result(shape, dtype)
	return result, bind, func() error { return nil }, nil
}

// inplace validates a tensor an in-place operation is about to overwrite.
func inplace(op string, t *tensor.RawTensor) error {
	return ops.CheckOut(op, t, t.Shape(), t.DType())
}

// onHost reports whether an operation over ts runs on the host backend.
// Float64 has no WGSL representation.
func onHost(ts ...*tensor.RawTensor) bool {
	for _, t := range ts {
		if t.DType() == tensor.Float64 {
			return true
		}
	}
	return false
}

// hostWritable rejects host fallbacks that would write into device memory,
// since the host only sees a snapshot of it.
func hostWritable(op string, ts ...*tensor.RawTensor) error {
	for _, t := range ts {
		if t.Resident() != nil {
			return fmt.Errorf("%s: %w: in-place %s on device memory", op, ops.ErrUnsupportedDType, t.DType())
		}
	}
	return nil
}

// ReadDeviceBuffer copies a result buffer to host memory.
// Implements tensor.DeviceReader.
func (b *Backend) ReadDeviceBuffer(handle unsafe.Pointer, size uint64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	return b.readBuffer((*wgpu.Buffer)(handle), size)
}

// ReleaseDeviceBuffer returns an owned result buffer to the pool.
// Buffers the backend does not own are left alone.
func (b *Backend) ReleaseDeviceBuffer(handle unsafe.Pointer) {
	buf := (*wgpu.Buffer)(handle)

	b.ownedMu.Lock()
	size, ok := b.owned[buf]
	delete(b.owned, buf)
	b.ownedMu.Unlock()
	if !ok {
		return
	}

	b.trackFree(size)
	b.pendingMu.Lock()
	pending := len(b.pendingCommands) > 0
	if pending {
		// Queued kernels may still write it.
		b.retired = append(b.retired, func() { b.bufferPool.Release(buf, size, storageUsage) })
	}
	b.pendingMu.Unlock()
	if !pending && b.bufferPool != nil {
		b.bufferPool.Release(buf, size, storageUsage)
	}
}
