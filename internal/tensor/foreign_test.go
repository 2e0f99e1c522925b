package tensor

import (
	"errors"
	"testing"
	"unsafe"
)

// hostHandle is a foreign buffer owned by the test.
type hostHandle struct {
	data    []float32
	shape   []int
	strides []int
	device  Device
}

func (h *hostHandle) DataPtr() unsafe.Pointer {
	if len(h.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&h.data[0])
}
func (h *hostHandle) Shape() []int    { return h.shape }
func (h *hostHandle) Stride() []int   { return h.strides }
func (h *hostHandle) DType() DataType { return Float32 }
func (h *hostHandle) Device() Device  { return h.device }

func TestBorrowIsZeroCopy(t *testing.T) {
	h := &hostHandle{data: []float32{1, 2, 3, 4, 5, 6}, shape: []int{2, 3}, strides: []int{3, 1}}

	view, err := Borrow(h)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if !view.IsBorrowed() {
		t.Error("view should be borrowed")
	}

	view.AsFloat32()[4] = 50
	if h.data[4] != 50 {
		t.Error("write through the view did not reach the foreign memory")
	}
	h.data[0] = -1
	if view.AsFloat32()[0] != -1 {
		t.Error("foreign write not visible through the view")
	}

	view.Release()
	if h.data[4] != 50 {
		t.Error("Release must not touch borrowed memory")
	}
}

func TestBorrowStrided(t *testing.T) {
	// Column-major (3, 2) layout of the same six values.
	h := &hostHandle{data: []float32{1, 2, 3, 4, 5, 6}, shape: []int{2, 3}, strides: []int{1, 2}}

	view, err := Borrow(h)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if view.IsContiguous() {
		t.Fatal("column-major view reported contiguous")
	}

	got := ToSlice[float32](view)
	want := []float32{1, 3, 5, 2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice = %v, want %v", got, want)
		}
	}
}

func TestBorrowRejectsBadMetadata(t *testing.T) {
	tests := []struct {
		name string
		h    *hostHandle
	}{
		{"stride rank", &hostHandle{data: []float32{1, 2}, shape: []int{2}, strides: []int{1, 1}}},
		{"negative stride", &hostHandle{data: []float32{1, 2}, shape: []int{2}, strides: []int{-1}}},
		{"nil pointer", &hostHandle{shape: []int{2}, strides: []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Borrow(tt.h)
			if !errors.Is(err, ErrInvalidStride) {
				t.Errorf("Borrow error = %v, want ErrInvalidStride", err)
			}
		})
	}
}

func TestBorrowRejectsDeviceMemory(t *testing.T) {
	h := &hostHandle{data: []float32{1}, shape: []int{1}, strides: []int{1}, device: WebGPU}
	if _, err := Borrow(h); err == nil {
		t.Error("Borrow of device memory should fail")
	}
}
