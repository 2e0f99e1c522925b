// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/kernels/internal/tensor"
)

// RawTensor is the tensor representation every operation consumes.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Typed host access via AsFloat32(), AsInt32(), etc.
//   - Reference-counted views via Clone()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
//	view := raw.Clone()
type RawTensor = tensor.RawTensor

// Shape lists tensor dimensions.
type Shape = tensor.Shape

// DataType identifies the element type.
type DataType = tensor.DataType

// Device identifies where tensor memory lives.
type Device = tensor.Device

// Foreign is implemented by externally owned buffers that can be adopted
// without copying.
type Foreign = tensor.Foreign

// DeviceData is the payload of a device-resident tensor.
type DeviceData = tensor.DeviceData

// Data types.
const (
	Float32   = tensor.Float32
	Float64   = tensor.Float64
	Int32     = tensor.Int32
	Int64     = tensor.Int64
	Uint8     = tensor.Uint8
	Bool      = tensor.Bool
	Uint32    = tensor.Uint32
	Uint64    = tensor.Uint64
	KeepDType = tensor.KeepDType
)

// Devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// ErrInvalidStride reports stride metadata that cannot describe a view.
var ErrInvalidStride = tensor.ErrInvalidStride

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros creates a zero-filled host tensor.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype)
}

// FromSlice copies data into a new host tensor of the given shape.
func FromSlice[T tensor.Element](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[T tensor.Element](data []T, shape Shape) *RawTensor {
	return tensor.MustFromSlice(data, shape)
}

// ToSlice returns a dense copy of the tensor's elements.
func ToSlice[T tensor.Element](r *RawTensor) []T {
	return tensor.ToSlice[T](r)
}

// Cast returns a dense host copy of r converted to dtype.
func Cast(r *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.Cast(r, dtype)
}

// Borrow wraps a foreign host buffer as a tensor view without copying.
func Borrow(f Foreign) (*RawTensor, error) {
	return tensor.Borrow(f)
}
