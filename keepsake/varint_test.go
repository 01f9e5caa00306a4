package keepsake

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarint128RoundTrip(t *testing.T) {
	maxU128 := uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")
	values := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(127),
		uint256.NewInt(128),
		uint256.NewInt(255),
		uint256.NewInt(16_383),
		uint256.NewInt(16_384),
		uint256.NewInt(230_362),
		uint256.NewInt(math.MaxUint64),
		maxU128,
	}
	for _, v := range values {
		buf := AppendUvarint128(nil, v)
		got, n, err := Uvarint128(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Zero(t, v.Cmp(got), "value %s", v)
	}
}

func TestUvarint128SingleByteValues(t *testing.T) {
	for b := byte(0); b < 128; b++ {
		got, n, err := Uvarint128([]byte{b})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, uint64(b), got.Uint64())
	}
}

func TestUvarint128Truncated(t *testing.T) {
	_, _, err := Uvarint128(nil)
	assert.ErrorIs(t, err, ErrVarintTruncated)

	buf := AppendUvarint128(nil, uint256.NewInt(300))
	require.Greater(t, len(buf), 1)
	_, _, err = Uvarint128(buf[:1])
	assert.ErrorIs(t, err, ErrVarintTruncated)

	// every byte claims another follows
	all := make([]byte, maxVarintLen)
	for i := range all {
		all[i] = 0xff
	}
	_, _, err = Uvarint128(all)
	assert.ErrorIs(t, err, ErrVarintTruncated)
}

func TestUvarint128Overflow(t *testing.T) {
	// 2^128 exactly: one bit beyond the allowed range
	over := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	buf := AppendUvarint128(nil, over)
	_, _, err := Uvarint128(buf)
	assert.ErrorIs(t, err, ErrVarintOverflow)

	// more than 19 bytes of continuation
	long := make([]byte, maxVarintLen+1)
	for i := range long {
		long[i] = 0xff
	}
	long[len(long)-1] = 0x00
	_, _, err = Uvarint128(long)
	assert.ErrorIs(t, err, ErrVarintOverflow)
}

func TestIntegers(t *testing.T) {
	var payload []byte
	payload = AppendUvarint128(payload, uint256.NewInt(0))
	payload = AppendUvarint128(payload, uint256.NewInt(999))
	payload = AppendUvarint128(payload, uint256.NewInt(1))

	integers, err := Integers(payload)
	require.NoError(t, err)
	require.Len(t, integers, 3)
	assert.Equal(t, uint64(0), integers[0].Uint64())
	assert.Equal(t, uint64(999), integers[1].Uint64())
	assert.Equal(t, uint64(1), integers[2].Uint64())

	_, err = Integers(append(payload, 0x80))
	assert.ErrorIs(t, err, ErrVarintTruncated)
}
