// Package tensor provides the tensor data model shared by every compute backend.
package tensor

// Float is a constraint for the floating-point element types kernels are generic over.
type Float interface {
	~float32 | ~float64
}

// Element is a constraint for every Go type that can back a RawTensor.
type Element interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint32 | ~uint64 | ~uint8 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Uint32
	Uint64
)

// KeepDType asks conversion routines to keep the source data type.
const KeepDType DataType = -1

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// IsFloat reports whether the data type is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case KeepDType:
		return "keep"
	default:
		return "unknown"
	}
}

// DataTypeOf infers the DataType of a Go element type.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
