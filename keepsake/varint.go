package keepsake

import (
	"errors"

	"github.com/holiman/uint256"
)

// Protocol integers are unsigned 128-bit LEB128 varints: 7 bits per byte
// little-endian, high bit set while more bytes follow, at most 19 bytes.

const maxVarintLen = 19

var (
	ErrVarintOverflow  = errors.New("keepsake: varint overflows u128")
	ErrVarintTruncated = errors.New("keepsake: truncated varint")
)

// Uvarint128 decodes a single varint from the front of buf and returns the
// value together with the number of bytes consumed.
func Uvarint128(buf []byte) (*uint256.Int, int, error) {
	n := new(uint256.Int)
	chunk := new(uint256.Int)
	for i, b := range buf {
		if i >= maxVarintLen {
			return nil, 0, ErrVarintOverflow
		}
		chunk.SetUint64(uint64(b & 0x7f))
		chunk.Lsh(chunk, uint(7*i))
		n.Or(n, chunk)
		if b&0x80 == 0 {
			if n.BitLen() > 128 {
				return nil, 0, ErrVarintOverflow
			}
			return n, i + 1, nil
		}
	}
	return nil, 0, ErrVarintTruncated
}

// AppendUvarint128 appends the varint encoding of n to dst.
func AppendUvarint128(dst []byte, n *uint256.Int) []byte {
	v := new(uint256.Int).Set(n)
	for v.BitLen() > 7 {
		dst = append(dst, byte(v.Uint64()&0x7f)|0x80)
		v.Rsh(v, 7)
	}
	return append(dst, byte(v.Uint64()))
}

// Integers decodes the whole payload into its integer sequence.
func Integers(payload []byte) ([]*uint256.Int, error) {
	var integers []*uint256.Int
	i := 0
	for i < len(payload) {
		n, length, err := Uvarint128(payload[i:])
		if err != nil {
			return nil, err
		}
		integers = append(integers, n)
		i += length
	}
	return integers, nil
}

func fitsU128(n *uint256.Int) bool {
	return n.BitLen() <= 128
}
