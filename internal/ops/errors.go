package ops

import (
	"errors"

	"github.com/born-ml/kernels/internal/tensor"
)

// Error taxonomy for operations. Backends wrap these with the operation name,
// callers match them with errors.Is.
var (
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrDTypeMismatch     = errors.New("dtype mismatch")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrUnsupportedBuffer = errors.New("unsupported buffer type")
	ErrInvalidStride     = tensor.ErrInvalidStride
	ErrLengthsOverrun    = errors.New("segment lengths exceed rows")
	ErrNegativeLength    = errors.New("negative segment length")
	ErrEmptySegment      = errors.New("empty segment")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDeviceUnavailable = errors.New("device unavailable")
)
