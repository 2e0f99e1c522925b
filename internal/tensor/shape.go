package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions >= 0).
// Zero-sized dimensions are allowed: an empty batch is a legal tensor.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// IsContiguous reports whether strides describe the dense row-major layout of s.
// Dimensions of size 1 never affect contiguity.
func (s Shape) IsContiguous(strides []int) bool {
	if len(strides) != len(s) {
		return false
	}
	expected := 1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != 1 && strides[i] != expected {
			return false
		}
		expected *= s[i]
	}
	return true
}

// Rows returns the leading dimension and the product of the remaining ones,
// the (rows, width) view kernels use for row-segmented operations.
func (s Shape) Rows() (rows, width int) {
	if len(s) == 0 {
		return 1, 1
	}
	rows = s[0]
	width = 1
	for _, dim := range s[1:] {
		width *= dim
	}
	return rows, width
}

// String formats the shape as (d0, d1, ...).
func (s Shape) String() string {
	out := "("
	for i, dim := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(dim)
	}
	return out + ")"
}
