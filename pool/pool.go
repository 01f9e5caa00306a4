/*
Package pool implements the constant-product market between an enshrined
relic and MBTC. Reserves are u128 amounts; intermediate products use the
full 256-bit width so k = base*quote never overflows.
*/
package pool

import (
	"errors"

	"github.com/holiman/uint256"
)

// DefaultFeeBps is the trading fee charged on the input side, 1%.
const DefaultFeeBps = 100

const bpsDenominator = 10_000

var (
	// ErrSlippage means the computed output fell below the caller's floor.
	ErrSlippage = errors.New("pool: output below minimum")
	// ErrDepleted means the swap would drain a reserve to zero.
	ErrDepleted = errors.New("pool: reserve would reach zero")
	// ErrEmptySwap means the input amount is zero.
	ErrEmptySwap = errors.New("pool: zero input")
)

// Pool holds the live reserves. BaseReserve is MBTC, QuoteReserve the relic.
type Pool struct {
	BaseReserve  uint256.Int `json:"baseReserve"`
	QuoteReserve uint256.Int `json:"quoteReserve"`
	FeeBps       uint16      `json:"feeBps"`
}

func New(base, quote *uint256.Int) *Pool {
	p := &Pool{FeeBps: DefaultFeeBps}
	p.BaseReserve.Set(base)
	p.QuoteReserve.Set(quote)
	return p
}

// Diff is the computed effect of a swap before it is applied.
type Diff struct {
	Input  uint256.Int // added to the input-side reserve, fee included
	Output uint256.Int // removed from the output-side reserve
	Fee    uint256.Int // portion of Input retained by the pool
}

// Quote prices an exact-input swap without mutating the pool. sellQuote
// false spends MBTC for the relic, true spends the relic for MBTC.
func (p *Pool) Quote(input, outputMin *uint256.Int, sellQuote bool) (*Diff, error) {
	if input.IsZero() {
		return nil, ErrEmptySwap
	}
	reserveIn, reserveOut := &p.BaseReserve, &p.QuoteReserve
	if sellQuote {
		reserveIn, reserveOut = &p.QuoteReserve, &p.BaseReserve
	}

	fee := new(uint256.Int).Mul(input, uint256.NewInt(uint64(p.FeeBps)))
	fee.Div(fee, uint256.NewInt(bpsDenominator))
	effective := new(uint256.Int).Sub(input, fee)

	denom := new(uint256.Int).Add(reserveIn, effective)
	output := new(uint256.Int).Mul(reserveOut, effective)
	output.Div(output, denom)

	if output.Lt(outputMin) {
		return nil, ErrSlippage
	}
	if output.IsZero() || !output.Lt(reserveOut) {
		return nil, ErrDepleted
	}

	diff := &Diff{}
	diff.Input.Set(input)
	diff.Output.Set(output)
	diff.Fee.Set(fee)
	return diff, nil
}

// Apply commits a quoted swap to the reserves.
func (p *Pool) Apply(diff *Diff, sellQuote bool) {
	if sellQuote {
		p.QuoteReserve.Add(&p.QuoteReserve, &diff.Input)
		p.BaseReserve.Sub(&p.BaseReserve, &diff.Output)
	} else {
		p.BaseReserve.Add(&p.BaseReserve, &diff.Input)
		p.QuoteReserve.Sub(&p.QuoteReserve, &diff.Output)
	}
}

// K is the constant-product invariant base*quote, non-decreasing per swap.
func (p *Pool) K() *uint256.Int {
	return new(uint256.Int).Mul(&p.BaseReserve, &p.QuoteReserve)
}

func (p *Pool) Clone() *Pool {
	clone := &Pool{FeeBps: p.FeeBps}
	clone.BaseReserve.Set(&p.BaseReserve)
	clone.QuoteReserve.Set(&p.QuoteReserve)
	return clone
}
