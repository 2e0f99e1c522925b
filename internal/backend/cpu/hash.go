package cpu

import (
	"fmt"
	"math/bits"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// MurmurHash3 x86_128 mixing constants.
const (
	murmurC1 uint32 = 0x239b961b
	murmurC2 uint32 = 0xab0e9789
	murmurC3 uint32 = 0x38b34ae5
)

// Hash maps each uint64 id to the four 32-bit words of the MurmurHash3
// x86_128 digest of its 8 little-endian bytes: (N,) -> (N, 4) uint32.
func (cpu *CPUBackend) Hash(ids *tensor.RawTensor, seed uint32) (*tensor.RawTensor, error) {
	if err := checkHashIDs(ids); err != nil {
		return nil, err
	}
	keys := ids.Contiguous().AsUint64()
	result := cpu.alloc("hash", tensor.Shape{len(keys), 4}, tensor.Uint32)
	dst := result.AsUint32()

	parallel.ForRange(len(keys), func(start, end int) {
		for i := start; i < end; i++ {
			h := murmur3x86_128(keys[i], seed)
			copy(dst[i*4:(i+1)*4], h[:])
		}
	}, cpu.parallel)
	return result, nil
}

func checkHashIDs(ids *tensor.RawTensor) error {
	if err := ops.CheckRank("hash", ids, 1); err != nil {
		return err
	}
	if ids.DType() != tensor.Uint64 {
		return fmt.Errorf("hash: ids %w: %s, want uint64", ops.ErrUnsupportedDType, ids.DType())
	}
	return nil
}

// murmur3x86_128 hashes an 8-byte key. With no full 16-byte block only the
// tail rounds for k2 (bytes 4-7) and k1 (bytes 0-3) run.
func murmur3x86_128(key uint64, seed uint32) [4]uint32 {
	h1, h2, h3, h4 := seed, seed, seed, seed

	k2 := uint32(key >> 32)
	k2 *= murmurC2
	k2 = bits.RotateLeft32(k2, 16)
	k2 *= murmurC3
	h2 ^= k2

	k1 := uint32(key) //nolint:gosec // G115: low word
	k1 *= murmurC1
	k1 = bits.RotateLeft32(k1, 15)
	k1 *= murmurC2
	h1 ^= k1

	const length = 8
	h1 ^= length
	h2 ^= length
	h3 ^= length
	h4 ^= length

	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1

	h1 = fmix32(h1)
	h2 = fmix32(h2)
	h3 = fmix32(h3)
	h4 = fmix32(h4)

	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1

	return [4]uint32{h1, h2, h3, h4}
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
