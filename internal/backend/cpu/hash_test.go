package cpu

import (
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// referenceMurmur3 is the general byte-oriented MurmurHash3 x86_128.
func referenceMurmur3(data []byte, seed uint32) [4]uint32 {
	const (
		c1 = 0x239b961b
		c2 = 0xab0e9789
		c3 = 0x38b34ae5
		c4 = 0xa1e38b93
	)
	h1, h2, h3, h4 := seed, seed, seed, seed
	rotl := bits.RotateLeft32

	nblocks := len(data) / 16
	for i := 0; i < nblocks; i++ {
		block := data[i*16:]
		k1 := binary.LittleEndian.Uint32(block[0:])
		k2 := binary.LittleEndian.Uint32(block[4:])
		k3 := binary.LittleEndian.Uint32(block[8:])
		k4 := binary.LittleEndian.Uint32(block[12:])

		k1 *= c1
		k1 = rotl(k1, 15)
		k1 *= c2
		h1 ^= k1
		h1 = rotl(h1, 19)
		h1 += h2
		h1 = h1*5 + 0x561ccd1b

		k2 *= c2
		k2 = rotl(k2, 16)
		k2 *= c3
		h2 ^= k2
		h2 = rotl(h2, 17)
		h2 += h3
		h2 = h2*5 + 0x0bcaa747

		k3 *= c3
		k3 = rotl(k3, 17)
		k3 *= c4
		h3 ^= k3
		h3 = rotl(h3, 15)
		h3 += h4
		h3 = h3*5 + 0x96cd1c35

		k4 *= c4
		k4 = rotl(k4, 18)
		k4 *= c1
		h4 ^= k4
		h4 = rotl(h4, 13)
		h4 += h1
		h4 = h4*5 + 0x32ac3b17
	}

	tail := data[nblocks*16:]
	var k [4]uint32
	for i, b := range tail {
		k[i/4] |= uint32(b) << (8 * (i % 4))
	}
	if len(tail) > 12 {
		k[3] *= c4
		k[3] = rotl(k[3], 18)
		k[3] *= c1
		h4 ^= k[3]
	}
	if len(tail) > 8 {
		k[2] *= c3
		k[2] = rotl(k[2], 17)
		k[2] *= c4
		h3 ^= k[2]
	}
	if len(tail) > 4 {
		k[1] *= c2
		k[1] = rotl(k[1], 16)
		k[1] *= c3
		h2 ^= k[1]
	}
	if len(tail) > 0 {
		k[0] *= c1
		k[0] = rotl(k[0], 15)
		k[0] *= c2
		h1 ^= k[0]
	}

	n := uint32(len(data)) //nolint:gosec // test input
	h1 ^= n
	h2 ^= n
	h3 ^= n
	h4 ^= n
	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1
	h1, h2, h3, h4 = fmix32(h1), fmix32(h2), fmix32(h3), fmix32(h4)
	h1 += h2 + h3 + h4
	h2 += h1
	h3 += h1
	h4 += h1
	return [4]uint32{h1, h2, h3, h4}
}

func TestMurmurMatchesReference(t *testing.T) {
	keys := []uint64{0, 1, 2, 0xdeadbeef, 1 << 40, ^uint64(0), 0x0123456789abcdef}
	for _, seed := range []uint32{0, 1, 42, 0xffffffff} {
		for _, key := range keys {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], key)
			assert.Equal(t, referenceMurmur3(buf[:], seed), murmur3x86_128(key, seed), "key %#x seed %d", key, seed)
		}
	}
}

func TestMurmurEmptyInput(t *testing.T) {
	assert.Equal(t, [4]uint32{}, referenceMurmur3(nil, 0))
}

func TestCPUBackend_Hash(t *testing.T) {
	backend := newTestBackend()
	ids := tensor.MustFromSlice([]uint64{1, 2, 1, 12345678901}, tensor.Shape{4})

	got, err := backend.Hash(ids, 7)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 4}, got.Shape())
	assert.Equal(t, tensor.Uint32, got.DType())

	rows := got.AsUint32()
	assert.Equal(t, rows[0:4], rows[8:12], "equal ids hash equally")
	assert.NotEqual(t, rows[0:4], rows[4:8], "distinct ids hash differently")

	h := murmur3x86_128(12345678901, 7)
	assert.Equal(t, h[:], rows[12:16])

	again, err := backend.Hash(ids, 7)
	require.NoError(t, err)
	assert.Equal(t, rows, again.AsUint32())

	reseeded, err := backend.Hash(ids, 8)
	require.NoError(t, err)
	assert.NotEqual(t, rows, reseeded.AsUint32())
}

func TestCPUBackend_HashErrors(t *testing.T) {
	backend := newTestBackend()

	_, err := backend.Hash(tensor.MustFromSlice([]int64{1}, tensor.Shape{1}), 0)
	assert.ErrorIs(t, err, ops.ErrUnsupportedDType)

	_, err = backend.Hash(tensor.MustFromSlice([]uint64{1, 2}, tensor.Shape{1, 2}), 0)
	assert.ErrorIs(t, err, ops.ErrShapeMismatch)
}
