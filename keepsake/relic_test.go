package keepsake

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relicFrom(t *testing.T, s string) Relic {
	t.Helper()
	r, err := RelicFromString(s)
	require.NoError(t, err)
	return r
}

func TestRelicCodecFixtures(t *testing.T) {
	fixtures := map[string]uint64{
		"A":    0,
		"B":    1,
		"Z":    25,
		"AA":   26,
		"AB":   27,
		"AZ":   51,
		"BA":   52,
		"MBTC": 230_362,
	}
	for name, value := range fixtures {
		r := relicFrom(t, name)
		assert.Equal(t, value, r.Value.Uint64(), name)
		assert.Equal(t, name, r.String())
	}
}

func TestRelicRoundTrip(t *testing.T) {
	names := []string{"A", "Z", "AA", "ZZ", "RELIC", "UNCOMMONRELICS", strings.Repeat("Z", MaxNameLength)}
	for _, name := range names {
		r := relicFrom(t, name)
		back, err := RelicFromString(r.String())
		require.NoError(t, err)
		assert.Zero(t, r.Value.Cmp(&back.Value))
		assert.Equal(t, len(name), r.Length())
	}
}

func TestRelicRejectsBadNames(t *testing.T) {
	for _, s := range []string{"", "a", "1", "A B", strings.Repeat("Z", MaxNameLength+1)} {
		_, err := RelicFromString(s)
		assert.Error(t, err, "%q", s)
	}

	// one past the largest valid 26-letter name
	max := relicFrom(t, strings.Repeat("Z", MaxNameLength))
	over := new(uint256.Int).AddUint64(&max.Value, 1)
	_, ok := NewRelic(over)
	assert.False(t, ok)
	_, ok = NewRelic(&max.Value)
	assert.True(t, ok)
}

func TestSealingFeeTable(t *testing.T) {
	cases := map[string]uint64{
		"A":              210_000,
		"AB":             21_000,
		"FOO":            2100,
		"ABCD":           500,
		"ABCDEF":         500,
		"ABCDEFG":        10,
		"ABCDEFGHIJKL":   10,
		"ABCDEFGHIJKLM":  1,
		"UNCOMMONRELICS": 1,
	}
	for name, units := range cases {
		fee := relicFrom(t, name).SealingFee()
		want := new(uint256.Int).Mul(uint256.NewInt(units), AtomsPerUnit)
		assert.Zero(t, fee.Cmp(want), name)
	}
}

func TestSpacedRelicDisplay(t *testing.T) {
	r := relicFrom(t, "UNCOMMONRELICS")
	spaced, err := NewSpacedRelic(r, 1<<7)
	require.NoError(t, err)
	assert.Equal(t, "UNCOMMON•RELICS", spaced.String())

	back, err := SpacedRelicFromString("UNCOMMON•RELICS")
	require.NoError(t, err)
	assert.Equal(t, spaced, back)

	dotted, err := SpacedRelicFromString("UNCOMMON.RELICS")
	require.NoError(t, err)
	assert.Equal(t, spaced, dotted)
}

func TestSpacedRelicValidation(t *testing.T) {
	r := relicFrom(t, "ABC")

	// bits 0 and 1 sit between letters, bit 2 would trail the name
	_, err := NewSpacedRelic(r, 0b11)
	assert.NoError(t, err)
	_, err = NewSpacedRelic(r, 0b100)
	assert.Error(t, err)

	_, err = SpacedRelicFromString("•ABC")
	assert.Error(t, err)
	_, err = SpacedRelicFromString("ABC•")
	assert.Error(t, err)
	_, err = SpacedRelicFromString("A••BC")
	assert.Error(t, err)
}

func TestRelicIdDeltaCodec(t *testing.T) {
	prev := RelicId{}
	id, ok := prev.Next(uint256.NewInt(840_000), uint256.NewInt(12))
	require.True(t, ok)
	assert.Equal(t, RelicId{Block: 840_000, Tx: 12}, id)

	// zero block delta advances only the tx index
	next, ok := id.Next(uint256.NewInt(0), uint256.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, RelicId{Block: 840_000, Tx: 15}, next)

	blockDelta, txDelta, ok := id.Delta(next)
	require.True(t, ok)
	assert.Equal(t, uint64(0), blockDelta)
	assert.Equal(t, uint32(3), txDelta)

	// nonzero block delta makes the tx index absolute
	far, ok := next.Next(uint256.NewInt(5), uint256.NewInt(1))
	require.True(t, ok)
	assert.Equal(t, RelicId{Block: 840_005, Tx: 1}, far)
}

func TestRelicIdParsing(t *testing.T) {
	id, err := ParseRelicId("120:5")
	require.NoError(t, err)
	assert.Equal(t, RelicId{Block: 120, Tx: 5}, id)
	assert.Equal(t, "120:5", id.String())

	for _, s := range []string{"", "120", "120:", ":5", "a:b", "120:5:1"} {
		_, err := ParseRelicId(s)
		assert.Error(t, err, "%q", s)
	}

	// ids in block zero other than (0,0) cannot exist
	_, ok := NewRelicIdFromIntegers(uint256.NewInt(0), uint256.NewInt(3))
	assert.False(t, ok)
	_, ok = NewRelicIdFromIntegers(uint256.NewInt(0), uint256.NewInt(0))
	assert.True(t, ok)
}

func TestBaseRelic(t *testing.T) {
	assert.Equal(t, RelicId{Block: 1, Tx: 0}, BaseId)
	base := relicFrom(t, BaseName)
	assert.Equal(t, uint64(230_362), base.Value.Uint64())
}
