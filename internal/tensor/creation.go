package tensor

import "fmt"

// Zeros creates a zero-filled host tensor.
//
// Example:
//
//	x, _ := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float32)
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRaw(shape, dtype, CPU)
}

// FromSlice creates a host tensor holding a copy of data with the given shape.
//
// Example:
//
//	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice[T Element](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("from slice: %d values do not fill shape %v", len(data), shape)
	}
	raw, err := NewRaw(shape, DataTypeOf[T](), CPU)
	if err != nil {
		return nil, err
	}
	copy(Values[T](raw), data)
	return raw, nil
}

// MustFromSlice is FromSlice that panics on error. Intended for tests and
// literals whose shape is known to be valid.
func MustFromSlice[T Element](data []T, shape Shape) *RawTensor {
	raw, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return raw
}

// Values returns the tensor's elements as a []T without copying.
// Panics if T does not match the tensor's dtype.
func Values[T Element](r *RawTensor) []T {
	return values[T](r, DataTypeOf[T]())
}

// ToSlice returns a dense copy of the tensor's elements.
func ToSlice[T Element](r *RawTensor) []T {
	dense := r.Contiguous()
	src := Values[T](dense)
	out := make([]T, dense.NumElements())
	copy(out, src)
	return out
}

// Cast returns a dense host copy of r converted to dtype.
// Conversions between numeric types follow Go conversion rules.
func Cast(r *RawTensor, dtype DataType) (*RawTensor, error) {
	src := r.Contiguous()
	out, err := NewRaw(src.Shape(), dtype, CPU)
	if err != nil {
		return nil, err
	}
	if src.DType() == dtype {
		copy(out.Data(), src.Data())
		return out, nil
	}

	n := src.NumElements()
	get := elementReader(src)
	set := elementWriter(out)
	if get == nil || set == nil {
		return nil, fmt.Errorf("cast: unsupported conversion %s -> %s", src.DType(), dtype)
	}
	for i := 0; i < n; i++ {
		set(i, get(i))
	}
	return out, nil
}

func elementReader(r *RawTensor) func(int) float64 {
	switch r.DType() {
	case Float32:
		v := r.AsFloat32()
		return func(i int) float64 { return float64(v[i]) }
	case Float64:
		v := r.AsFloat64()
		return func(i int) float64 { return v[i] }
	case Int32:
		v := r.AsInt32()
		return func(i int) float64 { return float64(v[i]) }
	case Int64:
		v := r.AsInt64()
		return func(i int) float64 { return float64(v[i]) }
	case Uint32:
		v := r.AsUint32()
		return func(i int) float64 { return float64(v[i]) }
	case Uint64:
		v := r.AsUint64()
		return func(i int) float64 { return float64(v[i]) }
	case Uint8:
		v := r.AsUint8()
		return func(i int) float64 { return float64(v[i]) }
	default:
		return nil
	}
}

func elementWriter(r *RawTensor) func(int, float64) {
	switch r.DType() {
	case Float32:
		v := r.AsFloat32()
		return func(i int, x float64) { v[i] = float32(x) }
	case Float64:
		v := r.AsFloat64()
		return func(i int, x float64) { v[i] = x }
	case Int32:
		v := r.AsInt32()
		return func(i int, x float64) { v[i] = int32(x) }
	case Int64:
		v := r.AsInt64()
		return func(i int, x float64) { v[i] = int64(x) }
	case Uint32:
		v := r.AsUint32()
		return func(i int, x float64) { v[i] = uint32(x) }
	case Uint64:
		v := r.AsUint64()
		return func(i int, x float64) { v[i] = uint64(x) }
	case Uint8:
		v := r.AsUint8()
		return func(i int, x float64) { v[i] = uint8(x) }
	default:
		return nil
	}
}

// FromAny copies a supported Go slice into a new 1-D host tensor.
// It returns false when x is not a supported slice type.
func FromAny(x any) (*RawTensor, bool) {
	var (
		raw *RawTensor
		err error
	)
	switch v := x.(type) {
	case []float32:
		raw, err = FromSlice(v, Shape{len(v)})
	case []float64:
		raw, err = FromSlice(v, Shape{len(v)})
	case []int32:
		raw, err = FromSlice(v, Shape{len(v)})
	case []int64:
		raw, err = FromSlice(v, Shape{len(v)})
	case []uint32:
		raw, err = FromSlice(v, Shape{len(v)})
	case []uint64:
		raw, err = FromSlice(v, Shape{len(v)})
	case []uint8:
		raw, err = FromSlice(v, Shape{len(v)})
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return raw, true
}
