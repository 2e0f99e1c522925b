package tensor

import (
	"testing"
)

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64, CPU)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsUint64(t *testing.T) {
	raw, _ := NewRaw(Shape{4}, Uint64, CPU)
	data := raw.AsUint64()
	data[3] = 1 << 40
	if raw.AsUint64()[3] != 1<<40 {
		t.Error("AsUint64 should return zero-copy slice")
	}
}

func TestRawTensorRelease(_ *testing.T) {
	raw, _ := NewRaw(Shape{2, 2}, Float32, CPU)

	// Should not panic
	raw.Release()

	// Multiple releases should be safe (reference counting)
	raw.Release()
}

func TestRawTensorCloneIsShared(t *testing.T) {
	raw, _ := NewRaw(Shape{2, 2}, Float32, CPU)
	data := raw.AsFloat32()
	data[0] = 1.0

	clone := raw.Clone()

	if clone.AsFloat32()[0] != 1.0 {
		t.Error("Clone should share data")
	}
	if raw.IsUnique() || clone.IsUnique() {
		t.Error("After Clone(), neither tensor should be unique")
	}

	clone.Release()
	if !raw.IsUnique() {
		t.Error("After releasing the clone, the original should be unique again")
	}
}

func TestNewRawAllTypes(t *testing.T) {
	types := []struct {
		dtype       DataType
		elementSize int
	}{
		{Float32, 4},
		{Float64, 8},
		{Int32, 4},
		{Int64, 8},
		{Uint8, 1},
		{Bool, 1},
		{Uint32, 4},
		{Uint64, 8},
	}

	shape := Shape{2, 3}
	for _, tt := range types {
		raw, err := NewRaw(shape, tt.dtype, CPU)
		if err != nil {
			t.Fatalf("NewRaw(%v, %v) failed: %v", shape, tt.dtype, err)
		}

		if raw.DType() != tt.dtype {
			t.Errorf("DType = %v, want %v", raw.DType(), tt.dtype)
		}

		expectedByteSize := 6 * tt.elementSize
		if raw.ByteSize() != expectedByteSize {
			t.Errorf("ByteSize = %d, want %d for type %v", raw.ByteSize(), expectedByteSize, tt.dtype)
		}
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	for _, shape := range []Shape{{-1}, {2, -3}} {
		if _, err := NewRaw(shape, Float32, CPU); err == nil {
			t.Errorf("NewRaw(%v) should fail but didn't", shape)
		}
	}
}

func TestNewRawEmpty(t *testing.T) {
	raw, err := NewRaw(Shape{0, 4}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw with a zero dimension failed: %v", err)
	}
	if n := len(raw.AsFloat32()); n != 0 {
		t.Errorf("empty tensor has %d elements", n)
	}
}

func TestRawTensorAsWrongTypePanics(t *testing.T) {
	raw32, _ := NewRaw(Shape{2}, Float32, CPU)
	_ = raw32.AsFloat32()

	defer func() {
		if r := recover(); r == nil {
			t.Error("AsFloat64 on Float32 tensor should panic")
		}
	}()
	_ = raw32.AsFloat64()
}

func TestRawTensorScalar(t *testing.T) {
	raw, _ := NewRaw(Shape{}, Float32, CPU)

	if raw.NumElements() != 1 {
		t.Errorf("Scalar tensor NumElements = %d, want 1", raw.NumElements())
	}
	if len(raw.AsFloat32()) != 1 {
		t.Errorf("Scalar tensor data length = %d, want 1", len(raw.AsFloat32()))
	}
}

func TestRawTensorZero(t *testing.T) {
	raw := MustFromSlice([]float32{1, 2, 3}, Shape{3})
	raw.Zero()
	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Errorf("element %d = %v after Zero", i, v)
		}
	}
}

func TestRawTensorContiguous(t *testing.T) {
	raw := MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	if raw.Contiguous() != raw {
		t.Error("Contiguous on a dense tensor should return the tensor itself")
	}

	// Transposed view of the same buffer: shape (3, 2), strides (1, 3).
	view := raw.Clone()
	view.shape = Shape{3, 2}
	view.stride = []int{1, 3}
	if view.IsContiguous() {
		t.Fatal("transposed view reported contiguous")
	}

	dense := view.Contiguous()
	want := []float32{1, 4, 2, 5, 3, 6}
	got := dense.AsFloat32()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Contiguous() = %v, want %v", got, want)
		}
	}
}

func TestExtent(t *testing.T) {
	tests := []struct {
		shape   Shape
		strides []int
		want    int
	}{
		{Shape{2, 3}, []int{3, 1}, 6},
		{Shape{3, 2}, []int{1, 3}, 6},
		{Shape{2, 2}, []int{4, 1}, 6},
		{Shape{0, 5}, []int{5, 1}, 0},
	}
	for _, tt := range tests {
		if got := Extent(tt.shape, tt.strides); got != tt.want {
			t.Errorf("Extent(%v, %v) = %d, want %d", tt.shape, tt.strides, got, tt.want)
		}
	}
}

func TestRawTensorOverlaps(t *testing.T) {
	a := MustFromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})
	b := MustFromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})
	if !a.Overlaps(a.Clone()) {
		t.Error("a clone should overlap its source")
	}
	if a.Overlaps(b) {
		t.Error("independent tensors should not overlap")
	}
	if a.Overlaps(nil) {
		t.Error("nil never overlaps")
	}

	backing := []float32{1, 2, 3, 4, 5, 6}
	head, err := Borrow(&hostHandle{data: backing[:4], shape: []int{4}, strides: []int{1}})
	if err != nil {
		t.Fatal(err)
	}
	tail, err := Borrow(&hostHandle{data: backing[2:], shape: []int{4}, strides: []int{1}})
	if err != nil {
		t.Fatal(err)
	}
	last, err := Borrow(&hostHandle{data: backing[4:], shape: []int{2}, strides: []int{1}})
	if err != nil {
		t.Fatal(err)
	}
	if !head.Overlaps(tail) {
		t.Error("borrowed views sharing elements 2-3 should overlap")
	}
	if head.Overlaps(last) {
		t.Error("disjoint borrowed views should not overlap")
	}

	dev := newFakeDevice()
	handle := dev.upload(a.Data())
	x, err := NewDeviceRaw(Shape{4}, Float32, WebGPU, BorrowDeviceData(handle, 16, dev))
	if err != nil {
		t.Fatal(err)
	}
	y, err := NewStridedDeviceRaw(Shape{2, 2}, []int{1, 2}, Float32, WebGPU, BorrowDeviceData(handle, 16, dev))
	if err != nil {
		t.Fatal(err)
	}
	if !x.Overlaps(y) {
		t.Error("views of one device buffer should overlap")
	}
}
