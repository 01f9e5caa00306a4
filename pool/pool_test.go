package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reserves of a pool seeded with 50 MBTC against 500 relic units at
// divisibility 8
func seededPool() *Pool {
	return New(uint256.NewInt(5_000_000_000), uint256.NewInt(50_000_000_000))
}

func TestQuoteBuyExactness(t *testing.T) {
	p := seededPool()

	// 10 MBTC in, 1% fee: x_eff = 990_000_000,
	// y = floor(50e9 * 99e7 / (5e9 + 99e7)) = 8_263_772_954
	diff, err := p.Quote(uint256.NewInt(1_000_000_000), uint256.NewInt(8_000_000_000), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), diff.Input.Uint64())
	assert.Equal(t, uint64(10_000_000), diff.Fee.Uint64())
	assert.Equal(t, uint64(8_263_772_954), diff.Output.Uint64())

	k := p.K()
	p.Apply(diff, false)
	assert.Equal(t, uint64(6_000_000_000), p.BaseReserve.Uint64())
	assert.Equal(t, uint64(41_736_227_046), p.QuoteReserve.Uint64())
	assert.True(t, p.K().Cmp(k) >= 0, "k must not decrease")
}

func TestQuoteSlippage(t *testing.T) {
	p := seededPool()
	// one unit above the achievable output
	_, err := p.Quote(uint256.NewInt(1_000_000_000), uint256.NewInt(8_263_772_955), false)
	assert.ErrorIs(t, err, ErrSlippage)
}

func TestQuoteZeroInput(t *testing.T) {
	p := seededPool()
	_, err := p.Quote(uint256.NewInt(0), uint256.NewInt(0), false)
	assert.ErrorIs(t, err, ErrEmptySwap)
}

func TestQuoteDepleted(t *testing.T) {
	// tiny pool: any meaningful input would drain the output side
	p := New(uint256.NewInt(1), uint256.NewInt(1))
	_, err := p.Quote(uint256.NewInt(1_000_000), uint256.NewInt(0), false)
	assert.ErrorIs(t, err, ErrDepleted)

	// dust input against a lopsided pool rounds the output to zero
	p = New(uint256.NewInt(1_000_000), uint256.NewInt(1))
	_, err = p.Quote(uint256.NewInt(100), uint256.NewInt(0), false)
	assert.ErrorIs(t, err, ErrDepleted)
}

func TestQuoteSellDirection(t *testing.T) {
	p := seededPool()
	diff, err := p.Quote(uint256.NewInt(10_000_000_000), uint256.NewInt(0), true)
	require.NoError(t, err)

	k := p.K()
	p.Apply(diff, true)
	assert.Equal(t, uint64(60_000_000_000), p.QuoteReserve.Uint64())
	assert.True(t, p.BaseReserve.Uint64() < 5_000_000_000)
	assert.True(t, p.K().Cmp(k) >= 0, "k must not decrease")
}

func TestBuySellRoundTripLosesToFees(t *testing.T) {
	p := seededPool()
	input := uint256.NewInt(1_000_000_000)

	buy, err := p.Quote(input, uint256.NewInt(0), false)
	require.NoError(t, err)
	p.Apply(buy, false)

	sell, err := p.Quote(&buy.Output, uint256.NewInt(0), true)
	require.NoError(t, err)
	p.Apply(sell, true)

	// fees mean the round trip returns strictly less than was paid in
	assert.True(t, sell.Output.Lt(input))
}

func TestFeeRounding(t *testing.T) {
	// below 100 atomic units a 1% fee floors to zero
	p := New(uint256.NewInt(1_000_000), uint256.NewInt(1_000_000))
	diff, err := p.Quote(uint256.NewInt(99), uint256.NewInt(0), false)
	require.NoError(t, err)
	assert.True(t, diff.Fee.IsZero())
}

func TestClone(t *testing.T) {
	p := seededPool()
	clone := p.Clone()
	diff, err := p.Quote(uint256.NewInt(1_000_000_000), uint256.NewInt(0), false)
	require.NoError(t, err)
	p.Apply(diff, false)
	assert.Equal(t, uint64(5_000_000_000), clone.BaseReserve.Uint64())
	assert.Equal(t, uint64(50_000_000_000), clone.QuoteReserve.Uint64())
}
