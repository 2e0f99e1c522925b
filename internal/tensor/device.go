package tensor

import (
	"runtime"
	"sync"
	"unsafe"
)

// DeviceReader is implemented by backends that keep tensor data in device memory.
type DeviceReader interface {
	// ReadDeviceBuffer copies size bytes of a device buffer to host memory.
	// handle is the backend's buffer object (e.g. *wgpu.Buffer).
	ReadDeviceBuffer(handle unsafe.Pointer, size uint64) ([]byte, error)

	// ReleaseDeviceBuffer frees a device buffer owned by the backend.
	ReleaseDeviceBuffer(handle unsafe.Pointer)
}

// DeviceData references tensor contents held in device memory.
//
// Owned data is read back once, on first host access, after which the device
// buffer is released and the host copy becomes authoritative. Borrowed data
// belongs to a foreign owner: it is never released here, stays authoritative,
// and every host access reads a fresh snapshot.
type DeviceData struct {
	handle   unsafe.Pointer
	size     uint64
	reader   DeviceReader
	borrowed bool
	realized bool
	mu       sync.Mutex
}

// NewDeviceData takes ownership of a device buffer.
// The buffer is released when the data is realized or garbage collected.
func NewDeviceData(handle unsafe.Pointer, size uint64, reader DeviceReader) *DeviceData {
	d := &DeviceData{
		handle: handle,
		size:   size,
		reader: reader,
	}

	runtime.SetFinalizer(d, func(dd *DeviceData) {
		dd.Release()
	})

	return d
}

// BorrowDeviceData wraps a device buffer owned by someone else.
// No safety guarantee exists if the owner frees the buffer while it is in use.
func BorrowDeviceData(handle unsafe.Pointer, size uint64, reader DeviceReader) *DeviceData {
	return &DeviceData{
		handle:   handle,
		size:     size,
		reader:   reader,
		borrowed: true,
	}
}

// IsRealized returns whether owned data has been transferred to the host.
func (d *DeviceData) IsRealized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.realized
}

// Borrowed reports whether the device buffer belongs to a foreign owner.
func (d *DeviceData) Borrowed() bool {
	return d.borrowed
}

// Realize reads the device buffer to host memory.
// Owned buffers are released afterwards; borrowed ones are left untouched.
func (d *DeviceData) Realize() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.realized {
		return nil, nil
	}

	data, err := d.reader.ReadDeviceBuffer(d.handle, d.size)
	if err != nil {
		return nil, err
	}
	if d.borrowed {
		return data, nil
	}

	d.realized = true
	if d.handle != nil {
		d.reader.ReleaseDeviceBuffer(d.handle)
		d.handle = nil
	}

	return data, nil
}

// Release frees an owned device buffer. Borrowed buffers are ignored.
func (d *DeviceData) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.borrowed {
		return
	}
	if d.handle != nil && d.reader != nil {
		d.reader.ReleaseDeviceBuffer(d.handle)
		d.handle = nil
	}
}

// Handle returns the backend buffer object.
func (d *DeviceData) Handle() unsafe.Pointer {
	return d.handle
}

// Size returns the buffer size in bytes.
func (d *DeviceData) Size() uint64 {
	return d.size
}
