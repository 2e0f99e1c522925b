package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// Asarray adopts x as a host tensor.
//
// Host tensors are returned as is when no conversion is needed, foreign host
// handles are viewed in place, and device tensors and Go slices are copied.
func (cpu *CPUBackend) Asarray(x any, dtype tensor.DataType) (*tensor.RawTensor, error) {
	var src *tensor.RawTensor
	switch v := x.(type) {
	case *tensor.RawTensor:
		if v == nil {
			return nil, fmt.Errorf("asarray: %w: nil tensor", ops.ErrUnsupportedBuffer)
		}
		if v.Device() == cpu.device && keeps(v, dtype) {
			return v, nil
		}
		src = v
	case tensor.Foreign:
		if v.Device() != cpu.device {
			return nil, fmt.Errorf("asarray: %w: %s memory is not host addressable", ops.ErrUnsupportedBuffer, v.Device())
		}
		view, err := tensor.Borrow(v)
		if err != nil {
			return nil, fmt.Errorf("asarray: %w", err)
		}
		if keeps(view, dtype) {
			return view, nil
		}
		src = view
	default:
		copied, ok := tensor.FromAny(x)
		if !ok {
			return nil, fmt.Errorf("asarray: %w: %T", ops.ErrUnsupportedBuffer, x)
		}
		if keeps(copied, dtype) {
			return copied, nil
		}
		src = copied
	}

	if dtype == tensor.KeepDType {
		dtype = src.DType()
	}
	out, err := tensor.Cast(src, dtype)
	if err != nil {
		return nil, fmt.Errorf("asarray: %w: %w", ops.ErrUnsupportedDType, err)
	}
	return out, nil
}

func keeps(t *tensor.RawTensor, dtype tensor.DataType) bool {
	return dtype == tensor.KeepDType || dtype == t.DType()
}
