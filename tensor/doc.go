// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor data model shared by every backend.
//
// # Overview
//
// A [RawTensor] is a shape, element strides, a data type and a placement over
// reference-counted memory. Tensors allocated by a device backend keep their
// contents in device memory and read them back on first host access.
//
// # Basic Usage
//
//	import "github.com/born-ml/kernels/tensor"
//
//	func main() {
//	    x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	    fmt.Println(x.Shape(), x.DType())  // (2, 3) float32
//	    fmt.Println(tensor.ToSlice[float32](x))
//	}
//
// # Supported Data Types
//
//   - float32, float64
//   - int32, int64, uint32, uint64
//   - uint8, bool
//
// # Foreign Buffers
//
// Values implementing [Foreign] (a data pointer plus shape, strides, dtype and
// placement) are adopted without copying. The resulting view borrows the
// memory and is invalid once its owner frees it.
package tensor
